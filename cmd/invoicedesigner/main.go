/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"invoicedesigner/internal/api"
	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/config"
	"invoicedesigner/internal/crash"
	"invoicedesigner/internal/datasource"
	"invoicedesigner/internal/fields"
	applog "invoicedesigner/internal/log"
	"invoicedesigner/internal/settings"
	"invoicedesigner/internal/storage"
	"invoicedesigner/internal/templates"
	"invoicedesigner/internal/version"
)

func usage() {
	fmt.Println("Invoice Designer")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  invoicedesigner version|-v|--version     Show version")
	fmt.Println("  invoicedesigner serve [<addr>]            Run the designer API (default addr from config)")
	fmt.Println("  invoicedesigner config                    Print the effective configuration")
	fmt.Println("  invoicedesigner config set-token <token>  Store the API token in the OS keyring")
	fmt.Println("  invoicedesigner config clear-token        Remove the stored API token")
}

func main() {
	cfg, token, err := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config load incomplete", slog.Any("err", err))
	}

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("Invoice Designer")
			fmt.Println(version.String())
			return
		case "serve":
			addr := cfg.Server.Addr
			if len(args) >= 3 {
				addr = args[2]
			}
			if err := serve(cfg, token, addr); err != nil {
				l.Error("serve failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "config":
			if err := configCmd(cfg, args[2:]); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

func serve(cfg config.AppConfig, token, addr string) error {
	l := applog.WithComponent("cli")
	dir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	st, closeStore, err := storage.Open(cfg.Storage.Backend, dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			l.Error("close store", slog.Any("err", err))
		}
	}()

	settingsStore := settings.NewStore(st)
	engine := canvas.NewEngine(canvas.PageFromSettings(settingsStore.Load()), canvas.Options{
		Buffer:    cfg.Canvas.CollisionBufferPx,
		UndoDepth: cfg.Canvas.UndoDepth,
	})
	defer crash.Recover(dir, func() ([]byte, error) {
		return templates.ExportSnapshot(engine.Components(), settingsStore.Load(), time.Now().UTC())
	})

	var db datasource.DatabaseConnector
	if strings.EqualFold(cfg.DataSource.DatabaseDriver, "pgx") {
		pg := datasource.NewPgxConnector()
		defer pg.Close()
		db = pg
	}
	sources := datasource.NewRegistry(datasource.Options{
		HTTPClient: &http.Client{Timeout: cfg.DataSource.HTTPTimeout()},
		Database:   db,
		CacheTTL:   cfg.DataSource.CacheTTL(),
	})
	defer sources.Close()

	srv := api.New(api.Deps{
		Settings:    settingsStore,
		Fields:      fields.NewRegistry(st),
		Sources:     sources,
		Templates:   templates.NewManager(st),
		Engine:      engine,
		Token:       token,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	l.Info("serving", slog.String("addr", addr), slog.String("backend", cfg.Storage.Backend), slog.String("dir", dir), slog.Bool("auth", token != ""))
	if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func configCmd(cfg config.AppConfig, args []string) error {
	if len(args) == 0 {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", path, out)
		return nil
	}
	switch args[0] {
	case "set-token":
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			usage()
			return errors.New("set-token requires <token>")
		}
		if err := config.Save(cfg, strings.TrimSpace(args[1])); err != nil {
			return err
		}
		fmt.Println("API token stored in the OS keyring.")
		return nil
	case "clear-token":
		if err := config.DeleteToken(); err != nil {
			return err
		}
		fmt.Println("API token removed.")
		return nil
	default:
		usage()
		return fmt.Errorf("unknown config command %q", args[0])
	}
}
