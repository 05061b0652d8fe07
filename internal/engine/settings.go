package engine

import "time"

// Settings holds every tunable of a game. Zero values are not meaningful;
// start from DefaultSettings and override.
type Settings struct {
	// Round timer
	InitialBudget   time.Duration `json:"initialBudget"`
	Pellets         int           `json:"pellets"`
	WarningFraction float64       `json:"warningFraction"`
	CautionFraction float64       `json:"cautionFraction"`
	RoundTick       time.Duration `json:"roundTick"`
	MissPenalty     time.Duration `json:"missPenalty"`
	DecayRate       float64       `json:"decayRate"`
	DecayFloor      float64       `json:"decayFloor"`

	// Search timer
	SearchStart    int           `json:"searchStart"`
	SearchFloor    int           `json:"searchFloor"`
	SearchStep     int           `json:"searchStep"`
	SearchInterval time.Duration `json:"searchInterval"`

	// Hints
	HintsPerRound int           `json:"hintsPerRound"`
	HintCooldown  time.Duration `json:"hintCooldown"`
	HintBonus     int           `json:"hintBonus"`
	HintStagger   time.Duration `json:"hintStagger"`

	// Clearing and game over
	PelletBonus    int           `json:"pelletBonus"`
	DrainInterval  time.Duration `json:"drainInterval"`
	RevealInterval time.Duration `json:"revealInterval"`
	NextRoundDelay time.Duration `json:"nextRoundDelay"`
	GameOverDelay  time.Duration `json:"gameOverDelay"`
	ImageTimeout   time.Duration `json:"imageTimeout"`

	// High scores
	HighScoreCapacity int    `json:"highScoreCapacity"`
	GameID            string `json:"gameId"`
}

// DefaultSettings returns the stock arcade tuning.
func DefaultSettings() Settings {
	return Settings{
		InitialBudget:   120 * time.Second,
		Pellets:         40,
		WarningFraction: 0.20,
		CautionFraction: 0.30,
		RoundTick:       time.Second,
		MissPenalty:     10 * time.Second,
		DecayRate:       0.05,
		DecayFloor:      0.15,

		SearchStart:    999,
		SearchFloor:    10,
		SearchStep:     1,
		SearchInterval: 30 * time.Millisecond,

		HintsPerRound: 3,
		HintCooldown:  2 * time.Second,
		HintBonus:     1000,
		HintStagger:   400 * time.Millisecond,

		PelletBonus:    250,
		DrainInterval:  50 * time.Millisecond,
		RevealInterval: 800 * time.Millisecond,
		NextRoundDelay: 1500 * time.Millisecond,
		GameOverDelay:  time.Second,
		ImageTimeout:   10 * time.Second,

		HighScoreCapacity: 8,
		GameID:            "photohunt",
	}
}
