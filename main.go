package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/MJE43/photohunt/bindings"
	"github.com/MJE43/photohunt/internal/config"
)

//go:embed all:frontend/dist
var assets embed.FS

const (
	appConfigDirName = "photohunt"
	dbFileName       = "photohunt.db"
	repoURL          = "https://github.com/MJE43/photohunt"
)

var (
	appCtx   context.Context
	appCtxMu sync.RWMutex
)

func buildWindowsOptions() *windows.Options {
	return &windows.Options{
		BackdropType: windows.Mica,
		Theme:        windows.SystemDefault,
		CustomTheme: &windows.ThemeSettings{
			DarkModeTitleBar:   windows.RGB(20, 24, 33),
			DarkModeTitleText:  windows.RGB(241, 245, 249),
			DarkModeBorder:     windows.RGB(51, 65, 85),
			LightModeTitleBar:  windows.RGB(250, 250, 249),
			LightModeTitleText: windows.RGB(28, 25, 23),
			LightModeBorder:    windows.RGB(214, 211, 209),
		},
		// Pinch zoom would break click-to-image coordinate mapping.
		DisablePinchZoom:     true,
		IsZoomControlEnabled: false,
		ZoomFactor:           1.0,
		WindowClassName:      "PhotoHuntWindow",
		OnSuspend: func() {
			slog.Info("entering low power mode")
		},
		OnResume: func() {
			slog.Info("resuming from low power mode")
		},
	}
}

func buildMacOptions() *mac.Options {
	var icon []byte
	if data, err := assets.ReadFile("frontend/dist/assets/logo.png"); err == nil {
		icon = data
	}
	return &mac.Options{
		TitleBar: &mac.TitleBar{
			TitlebarAppearsTransparent: true,
			HideTitle:                  false,
			FullSizeContent:            false,
			HideToolbarSeparator:       true,
		},
		About: &mac.AboutInfo{
			Title:   "Photo Hunt",
			Message: "Find the differences between two photos before the clock runs out.\n\nBuilt with Wails",
			Icon:    icon,
		},
	}
}

func buildLinuxOptions() *linux.Options {
	var icon []byte
	if data, err := assets.ReadFile("frontend/dist/assets/logo.png"); err == nil {
		icon = data
	}
	return &linux.Options{
		Icon:             icon,
		WebviewGpuPolicy: linux.WebviewGpuPolicyOnDemand,
		ProgramName:      "photohunt",
	}
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)
	slog.Info("starting photohunt", "go", runtime.Version())

	if os.Getenv("PHOTOHUNT_DB_PATH") == "" {
		cfg.DBPath = defaultDBPath()
	}

	gameModule := bindings.New(cfg, log)

	startup := func(ctx context.Context) {
		setAppContext(ctx)
		gameModule.Startup(ctx)
	}
	beforeClose := func(ctx context.Context) (prevent bool) {
		gameModule.Shutdown(ctx)
		setAppContext(nil)
		return false
	}

	err = wails.Run(&options.App{
		Title:            "Photo Hunt",
		Width:            1280,
		Height:           860,
		MinWidth:         960,
		MinHeight:        720,
		WindowStartState: options.Normal,
		BackgroundColour: &options.RGBA{R: 20, G: 24, B: 33, A: 255},

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		OnStartup:     startup,
		OnBeforeClose: beforeClose,
		OnShutdown: func(ctx context.Context) {
			slog.Info("shutdown complete")
		},

		Menu: buildAppMenu(gameModule),
		Bind: []interface{}{gameModule},

		LogLevel:           logger.INFO,
		LogLevelProduction: logger.ERROR,

		EnableDefaultContextMenu: false,
		ErrorFormatter: func(err error) any {
			if err == nil {
				return nil
			}
			return err.Error()
		},

		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId: "5d2f8c1e-photohunt-desktop",
			OnSecondInstanceLaunch: func(data options.SecondInstanceData) {
				slog.Info("second instance launch prevented", "args", data.Args)
			},
		},
		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     false,
			DisableWebViewDrop: true,
		},

		Windows: buildWindowsOptions(),
		Mac:     buildMacOptions(),
		Linux:   buildLinuxOptions(),
	})
	if err != nil {
		slog.Error("wails run failed", "error", err)
		os.Exit(1)
	}
}

func defaultDBPath() string {
	dir := appDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("app data dir unavailable, using working directory", "dir", dir, "error", err)
		return dbFileName
	}
	return filepath.Join(dir, dbFileName)
}

// appDataDir returns an OS-appropriate writable directory.
func appDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, appConfigDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+appConfigDirName)
	}
	return "."
}

func buildAppMenu(game *bindings.GameModule) *menu.Menu {
	rootMenu := menu.NewMenu()

	if runtime.GOOS == "darwin" {
		if appMenu := menu.AppMenu(); appMenu != nil {
			rootMenu.Append(appMenu)
		}
	}

	gameMenu := menu.NewMenu()
	gameMenu.AddText("New Game", keys.CmdOrCtrl("n"), func(_ *menu.CallbackData) {
		go func() {
			if _, err := game.NewGame(); err != nil {
				slog.Warn("new game failed", "error", err)
			}
		}()
	})
	gameMenu.AddText("Pause", keys.Key("p"), func(_ *menu.CallbackData) {
		if err := game.Pause(); err != nil {
			if err := game.Resume(); err != nil {
				slog.Debug("pause toggle ignored", "error", err)
			}
		}
	})
	gameMenu.AddText("Open Data Directory", keys.CmdOrCtrl("o"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			openPathInExplorer(ctx, appDataDir())
		})
	})
	gameMenu.AddSeparator()
	gameMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.Quit(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("Game", gameMenu))

	viewMenu := menu.NewMenu()
	viewMenu.AddText("Toggle Fullscreen", keys.Combo("f", keys.CmdOrCtrlKey, keys.ShiftKey), func(_ *menu.CallbackData) {
		withAppContext(toggleFullscreen)
	})
	rootMenu.Append(menu.SubMenu("View", viewMenu))

	helpMenu := menu.NewMenu()
	helpMenu.AddText("Project Repository", nil, func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.BrowserOpenURL(ctx, repoURL)
		})
	})
	rootMenu.Append(menu.SubMenu("Help", helpMenu))

	return rootMenu
}

func openPathInExplorer(ctx context.Context, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	clean := filepath.ToSlash(abs)
	if runtime.GOOS == "windows" && len(clean) > 0 && clean[0] != '/' {
		clean = "/" + clean
	}
	wruntime.BrowserOpenURL(ctx, (&url.URL{Scheme: "file", Path: clean}).String())
}

func toggleFullscreen(ctx context.Context) {
	if wruntime.WindowIsFullscreen(ctx) {
		wruntime.WindowUnfullscreen(ctx)
		return
	}
	wruntime.WindowFullscreen(ctx)
}

func setAppContext(ctx context.Context) {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()
	appCtx = ctx
}

func withAppContext(action func(context.Context)) {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()
	if ctx == nil {
		slog.Debug("application context not initialised; ignoring menu action")
		return
	}
	action(ctx)
}
