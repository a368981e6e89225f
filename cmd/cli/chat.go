package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"survey-assistant-be/internal/bootstrap"
	"survey-assistant-be/internal/config"
	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey"
	"survey-assistant-be/pkg/surveybot"
	"survey-assistant-be/pkg/surveybot/flow"
	"survey-assistant-be/pkg/surveybot/stage"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type chatOptions struct {
	initType   string
	surveyID   int64
	file       string
	base       string
	surveyName string
	username   string
	password   string
	exportDir  string
}

func newChatCmd() *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive survey editing session",
		Example: `  survey-assistant chat --type scratch
  survey-assistant chat --type api --survey-id 12345
  survey-assistant chat --type word --file questionnaire.docx --base new --survey-name "Brand study"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := opts.source()
			if err != nil {
				return err
			}

			cfg := config.Load()
			if opts.exportDir == "" {
				opts.exportDir = cfg.App.ExportDir
			}
			if opts.username == "" {
				opts.username, opts.password = cfg.Voxco.Username, cfg.Voxco.Password
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			sysLogger := logger.NewIsolatedLogger(cfg.App.LogFilePath)
			defer sysLogger.Sync()

			engine, _, err := bootstrap.Engine(ctx, cfg, sysLogger)
			if err != nil {
				return err
			}

			var creds *store.Credentials
			if opts.username != "" {
				creds = &store.Credentials{Username: opts.username, Password: opts.password}
			}
			sess := store.NewSession(uuid.NewString(), store.NewInitialization(src), creds)

			return runChat(ctx, engine, sess, cmd.InOrStdin(), cmd.OutOrStdout(), opts.exportDir)
		},
	}

	cmd.Flags().StringVar(&opts.initType, "type", "scratch", "initialization type: scratch, api or word")
	cmd.Flags().Int64Var(&opts.surveyID, "survey-id", 0, "Voxco survey id (--type api, or --base existing)")
	cmd.Flags().StringVar(&opts.file, "file", "", "questionnaire document (--type word)")
	cmd.Flags().StringVar(&opts.base, "base", "local", "target for a document import: new, existing or local")
	cmd.Flags().StringVar(&opts.surveyName, "survey-name", "", "name of the survey created for --base new")
	cmd.Flags().StringVar(&opts.username, "username", "", "Voxco username (defaults to VOXCO_USERNAME)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Voxco password (defaults to VOXCO_PASSWORD)")
	cmd.Flags().StringVar(&opts.exportDir, "export-dir", "", "directory the final survey is written to (defaults to EXPORT_DIR)")

	return cmd
}

func (o *chatOptions) source() (store.Source, error) {
	switch o.initType {
	case string(store.KindScratch):
		return store.ScratchSource{}, nil
	case string(store.KindAPI):
		if o.surveyID <= 0 {
			return nil, fmt.Errorf("--survey-id is required for --type api")
		}
		return store.RemoteSource{SurveyID: o.surveyID}, nil
	case string(store.KindWord):
		if o.file == "" {
			return nil, fmt.Errorf("--file is required for --type word")
		}
		var base store.Base
		switch o.base {
		case "new":
			base = store.NewRemoteBase{SurveyName: o.surveyName}
		case "existing":
			if o.surveyID <= 0 {
				return nil, fmt.Errorf("--survey-id is required for --base existing")
			}
			base = store.ExistingRemoteBase{SurveyID: o.surveyID}
		case "local":
			base = store.LocalBase{}
		default:
			return nil, fmt.Errorf("unknown --base %q (want new, existing or local)", o.base)
		}
		return store.DocumentSource{Path: o.file, FileName: o.file, Base: base}, nil
	}
	return nil, fmt.Errorf("unknown --type %q (want scratch, api or word)", o.initType)
}

// runChat initializes the session, then feeds one input line per chat turn until the
// user exits or input ends.
func runChat(ctx context.Context, engine *surveybot.Engine, sess *store.Session, in io.Reader, out io.Writer, exportDir string) error {
	color.Cyan("Initializing survey (%s)...", sess.Init)
	if _, err := engine.Advance(ctx, sess, stage.RouterID); err != nil {
		return err
	}
	printNotices(out, sess.DrainNotices())
	if sess.Document.IsZero() {
		return fmt.Errorf("initialization failed")
	}
	color.Green("Survey %q ready. Type a change request, \"save\" or \"exit\".", sess.Document.Name())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, color.YellowString("\nYou: "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sess.PendingMessage = line
		sess.SaveStatus = store.SaveUnset
		next, err := engine.Advance(ctx, sess, stage.ChatID)
		if err != nil {
			return err
		}

		if sess.LastDisplay != "" {
			fmt.Fprintf(out, "\n%s\n%s\n", color.CyanString("Assistant:"), sess.LastDisplay)
		}
		printNotices(out, sess.DrainNotices())

		if next == flow.End {
			break
		}
	}

	return exportFinal(out, sess, exportDir)
}

func exportFinal(out io.Writer, sess *store.Session, exportDir string) error {
	id, ok := sess.RemoteID()
	path, _, err := survey.Export(exportDir, survey.ExportFileName(id, ok, time.Now()), sess.Document)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, color.GreenString("Survey written to %s", path))
	return nil
}

func printNotices(out io.Writer, notices []store.Notice) {
	for _, n := range notices {
		switch n.Level {
		case store.LevelError:
			fmt.Fprintln(out, color.RedString("Error: %s", n.Message))
		case store.LevelWarning:
			fmt.Fprintln(out, color.YellowString("Warning: %s", n.Message))
		default:
			fmt.Fprintln(out, n.Message)
		}
	}
}
