// Package cmd holds the tmagen command line: the HTTP server and the headless
// generate, settings and project-name commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tma-generator/config"
	"tma-generator/db"
	"tma-generator/handlers"
	"tma-generator/logger"
	"tma-generator/session"
	"tma-generator/settings"
)

var cfgFile string

// app is the state shared by every subcommand once configuration is loaded.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	logCloser io.Closer
	store     settings.Store
	recorder  session.RunRecorder
	runs      handlers.RunLister
	closeDB   func()
}

var current app

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tmagen",
	Short: "Generate LaTeX answer templates for tutor-marked assignments",
	Long: `tmagen turns a question structure (marks, parts and subparts per question)
into a tree of LaTeX files: a root document, one file per question and one per part.

It can run as a web form and JSON API (serve) or headless from a project file (generate).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return current.setup(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		current.close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(projectNameCmd)
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadConfig(viper.New(), cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	log, closer, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("error configuring logging: %w", err)
	}
	a.cfg, a.log, a.logCloser = cfg, log, closer

	if cfg.DatabaseURL == "" {
		a.store = settings.NewFileStore(afero.NewOsFs(), cfg.SettingsFile, log)
		log.WithField("file", cfg.SettingsFile).Debug("using settings file")
		return nil
	}

	pool, err := db.InitDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.CreateSchema(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("error creating database schema: %w", err)
	}
	recorder := db.NewRunRecorder(pool)
	a.store = db.NewPostgresStore(pool, currentUser(), log)
	a.recorder = recorder
	a.runs = recorder
	a.closeDB = pool.Close
	return nil
}

func (a *app) close() {
	if a.closeDB != nil {
		a.closeDB()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// session builds a generation session on the OS filesystem.
func (a *app) session() *session.Session {
	s := session.New(a.store, a.cfg.ResourceDir, a.log)
	s.Recorder = a.recorder
	return s
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
