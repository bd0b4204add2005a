package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/levchenko/complychat/internal/backend"
	"github.com/levchenko/complychat/internal/chat"
	"github.com/levchenko/complychat/internal/demo"
	"github.com/levchenko/complychat/internal/storage"
)

var (
	askSession string
	askLast    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the compliance assistant a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		ctl, store, err := a.openController()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		if askSession != "" {
			if err := ctl.SelectHistoryEntry(ctx, askSession); err != nil {
				return err
			}
		} else if askLast {
			last, err := store.LastSession()
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if last != "" {
				if err := ctl.SelectHistoryEntry(ctx, last); err != nil {
					return err
				}
			}
		}

		question := strings.Join(args, " ")
		if err := ctl.SendMessage(ctx, question); err != nil {
			printError("%v", err)
			return err
		}

		session := ctl.Session()
		printMessage(cmd, session.Messages[len(session.Messages)-1])
		if session.ID != "" {
			if err := store.SetLastSession(session.ID); err != nil {
				printWarning("could not remember session: %v", err)
			}
		}
		return nil
	},
}

var chatDemo bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the compliance assistant.

Slash commands inside the session:
  /new              start a fresh conversation
  /demo             load the built-in demo document conversation
  /upload <files>   upload documents into the knowledge base
  /history          list prior sessions
  /open <n|id>      load a prior session by list number or id
  /quit             leave the chat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		ctl, store, err := a.openController()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		if chatDemo {
			if err := ctl.LoadDemo(); err != nil {
				return err
			}
			for _, m := range ctl.Session().Messages {
				printMessage(cmd, m)
			}
		} else {
			printStep("Upload documents with /upload, or just start asking questions.")
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for {
			fmt.Fprint(cmd.OutOrStdout(), "> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			if strings.HasPrefix(line, "/") {
				quit, err := runSlashCommand(cmd, ctl, store, line)
				if err != nil {
					printError("%v", err)
				}
				if quit {
					break
				}
				continue
			}

			if err := ctl.SendMessage(ctx, line); err != nil {
				printError("%v", err)
				continue
			}
			session := ctl.Session()
			printMessage(cmd, session.Messages[len(session.Messages)-1])
			if session.ID != "" {
				if err := store.SetLastSession(session.ID); err != nil {
					printWarning("could not remember session: %v", err)
				}
			}
		}
		return scanner.Err()
	},
}

func runSlashCommand(cmd *cobra.Command, ctl *chat.Controller, store *storage.Store, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	ctx := cmd.Context()

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		ctl.StartNew()
		printStep("Started a new conversation.")
		return false, nil

	case "/demo":
		if err := ctl.LoadDemo(); err != nil {
			if errors.Is(err, chat.ErrNotUploadMode) {
				return false, errors.New("demo is only available before the conversation starts; use /new first")
			}
			return false, err
		}
		for _, m := range ctl.Session().Messages {
			printMessage(cmd, m)
		}
		return false, nil

	case "/upload":
		if len(fields) < 2 {
			return false, errors.New("usage: /upload <files>")
		}
		return false, uploadFiles(cmd, ctl, fields[1:])

	case "/history":
		entries, err := ctl.RefreshHistory(ctx)
		if err != nil {
			return false, err
		}
		printHistoryList(cmd, entries)
		return false, nil

	case "/open":
		if len(fields) != 2 {
			return false, errors.New("usage: /open <n|id>")
		}
		id := fields[1]
		if n, nerr := strconv.Atoi(id); nerr == nil {
			entries := ctl.History()
			if len(entries) == 0 {
				entries, err = ctl.RefreshHistory(ctx)
				if err != nil {
					return false, err
				}
			}
			if n < 1 || n > len(entries) {
				return false, fmt.Errorf("no history entry %d", n)
			}
			id = entries[n-1].SessionID
		}
		if err := ctl.SelectHistoryEntry(ctx, id); err != nil {
			return false, err
		}
		for _, m := range ctl.Session().Messages {
			printMessage(cmd, m)
		}
		return false, store.SetLastSession(id)

	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

var uploadCmd = &cobra.Command{
	Use:   "upload <files>",
	Short: "Upload compliance documents to the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		ctl, store, err := a.openController()
		if err != nil {
			return err
		}
		defer store.Close()

		return uploadFiles(cmd, ctl, args)
	},
}

func uploadFiles(cmd *cobra.Command, ctl *chat.Controller, paths []string) error {
	var uploads []backend.Upload
	var closers []*os.File
	defer func() {
		for _, f := range closers {
			f.Close()
		}
	}()

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		closers = append(closers, f)
		uploads = append(uploads, backend.Upload{Name: filepath.Base(path), Content: f})
	}

	err := ctl.UploadDocuments(cmd.Context(), uploads)
	session := ctl.Session()
	if len(session.Messages) > 0 {
		last := session.Messages[len(session.Messages)-1]
		if last.Role == backend.RoleSystem {
			if err != nil {
				printError("%s", last.Content)
			} else {
				printSuccess("%s", last.Content)
			}
		}
	}
	return err
}

var historyRefresh bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List prior conversation sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctl, store, err := a.openController()
		if err != nil {
			return err
		}
		defer store.Close()

		var entries []backend.HistoryEntry
		if historyRefresh {
			if err := a.requireLogin(); err != nil {
				return err
			}
			entries, err = ctl.RefreshHistory(cmd.Context())
			if err != nil {
				return err
			}
		} else if a.requireLogin() == nil {
			entries, err = ctl.RefreshHistory(cmd.Context())
			if err != nil {
				printWarning("could not reach the backend, showing cached history")
			}
		}
		if entries == nil {
			entries, err = store.History()
			if err != nil {
				return err
			}
		}
		printHistoryList(cmd, entries)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the transcript of a prior session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		msgs, err := a.client.HistoryMessages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, m := range msgs {
			printMessage(cmd, m)
		}
		return nil
	},
}

func printHistoryList(cmd *cobra.Command, entries []backend.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No prior sessions.")
		return
	}
	for i, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%3d. %s  %s\n", i+1, e.SessionID, e.Preview)
	}
}

var demoOpen bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Work with the built-in demo document",
}

var demoDocCmd = &cobra.Command{
	Use:   "doc",
	Short: "Download the demo compliance document",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		info, err := demo.Fetch(cmd.Context(), a.client, a.cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		printSuccess("Saved %s (%d pages, %d bytes)", info.Path, info.Pages, info.Size)

		if demoOpen {
			if err := demo.OpenInViewer(info.Path); err != nil {
				return err
			}
			printStep("Opened in the default viewer")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "continue a prior session by id")
	askCmd.Flags().BoolVar(&askLast, "last", false, "continue the most recent session")

	chatCmd.Flags().BoolVar(&chatDemo, "demo", false, "start with the demo document conversation")

	historyCmd.Flags().BoolVar(&historyRefresh, "refresh", false, "force a refresh from the backend")
	historyCmd.AddCommand(historyShowCmd)

	demoDocCmd.Flags().BoolVar(&demoOpen, "open", false, "open the document after downloading")
	demoCmd.AddCommand(demoDocCmd)
}
