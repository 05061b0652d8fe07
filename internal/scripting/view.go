package scripting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/MJE43/photohunt/internal/engine"
	"github.com/MJE43/photohunt/internal/game"
)

// View is what play() can see of the running game.
type View struct {
	Round          int
	Score          int
	TimeRemaining  float64
	SearchValue    int
	HintsRemaining int
	HintReady      bool
	Found          int
	Total          int
	Remaining      []game.FoundDifference
}

func injectView(vm *goja.Runtime, v View) {
	vm.Set("round", v.Round)
	vm.Set("score", v.Score)
	vm.Set("timeRemaining", v.TimeRemaining)
	vm.Set("searchValue", v.SearchValue)
	vm.Set("hintsRemaining", v.HintsRemaining)
	vm.Set("hintReady", v.HintReady)
	vm.Set("found", v.Found)
	vm.Set("total", v.Total)

	remaining := make([]map[string]interface{}, 0, len(v.Remaining))
	for _, d := range v.Remaining {
		remaining = append(remaining, map[string]interface{}{
			"index": d.Index,
			"left":  rectObject(d.Left),
			"right": rectObject(d.Right),
		})
	}
	vm.Set("remaining", remaining)
}

func rectObject(r engine.Rect) map[string]interface{} {
	return map[string]interface{}{"x": r.X, "y": r.Y, "width": r.Width, "height": r.Height}
}

// ActionKind says what play() asked for.
type ActionKind string

const (
	ActionNone  ActionKind = "none"
	ActionClick ActionKind = "click"
	ActionHint  ActionKind = "hint"
)

// Action is a decoded play() return value. Clicks are fractional positions
// on a unit box.
type Action struct {
	Kind  ActionKind
	Click engine.Click
}

var errBadAction = errors.New("play() must return null, {type:\"hint\"} or {type:\"click\", image, x, y}")

func parseAction(v goja.Value) (Action, error) {
	if isUndefinedOrNull(v) {
		return Action{Kind: ActionNone}, nil
	}
	obj, ok := v.Export().(map[string]interface{})
	if !ok {
		return Action{}, errBadAction
	}
	kind, _ := obj["type"].(string)
	switch strings.ToLower(kind) {
	case "hint":
		return Action{Kind: ActionHint}, nil
	case "click":
		side, err := engine.ParseSide(strings.ToLower(fmt.Sprint(obj["image"])))
		if err != nil {
			return Action{}, err
		}
		x, xok := toFloat(obj["x"])
		y, yok := toFloat(obj["y"])
		if !xok || !yok {
			return Action{}, fmt.Errorf("click needs numeric x and y: %w", errBadAction)
		}
		return Action{Kind: ActionClick, Click: engine.Click{Side: side, X: x, Y: y, BoxWidth: 1, BoxHeight: 1}}, nil
	}
	return Action{}, errBadAction
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isUndefinedOrNull(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
