package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skshohagmiah/flin-fanout/internal/api"
	"github.com/skshohagmiah/flin-fanout/internal/config"
	"github.com/skshohagmiah/flin-fanout/internal/db"
	"github.com/skshohagmiah/flin-fanout/internal/fanout"
	"github.com/skshohagmiah/flin-fanout/internal/logger"
)

var (
	envFile   string
	dataDir   string
	useMemory bool

	whereFlags []string
	limitFlag  int
	seedCount  int
	replace    bool
	unsetFlags []string
)

var rootCmd = &cobra.Command{
	Use:           "flin",
	Short:         "Document store with fanout queries over Badger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (overrides FLIN_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "use in-memory storage")

	for _, cmd := range []*cobra.Command{queryCmd, explainCmd} {
		cmd.Flags().StringArrayVarP(&whereFlags, "where", "w", nil, `constraint "field op value", value is JSON or a bare string`)
		cmd.Flags().IntVarP(&limitFlag, "limit", "l", 0, "maximum documents to return (0 = unbounded)")
	}
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 15, "number of users to insert")
	updateCmd.Flags().BoolVar(&replace, "replace", false, "replace the document body instead of merging")
	updateCmd.Flags().StringArrayVar(&unsetFlags, "unset", nil, "field to remove (repeatable)")

	indexCmd.AddCommand(indexCreateCmd, indexDropCmd, indexListCmd)
	rootCmd.AddCommand(serveCmd, insertCmd, getCmd, updateCmd, deleteCmd, countCmd, indexCmd,
		queryCmd, explainCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds what every command needs once flags and config are resolved.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	store *db.DocStore
}

func setup() (*env, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if useMemory {
		cfg.InMemory = true
	}
	log := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	opts := []db.Option{db.WithLogger(log), db.WithMaxMembershipValues(cfg.Fanout.ChunkSize)}
	if cfg.InMemory {
		opts = append(opts, db.InMemory())
	}
	store, err := db.New(cfg.DataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		srv := api.NewServer(e.store, e.cfg, e.log)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			e.log.Info("shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <collection> <json>",
	Short: "Insert a JSON document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc db.Document
		if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
			return fmt.Errorf("invalid document: %w", err)
		}
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		id, err := e.store.Insert(args[0], doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Print one document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		doc, err := e.store.Get(args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, api.Doc{ID: args[1], Data: doc})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <collection> <id> <json>",
	Short: "Merge (or with --replace, replace) fields of a document",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var set db.Document
		if err := json.Unmarshal([]byte(args[2]), &set); err != nil {
			return fmt.Errorf("invalid document: %w", err)
		}
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		opts := db.UpdateOptions{Set: set, Unset: unsetFlags, Merge: !replace}
		if err := e.store.Update(args[0], args[1], opts); err != nil {
			return err
		}
		doc, err := e.store.Get(args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, api.Doc{ID: args[1], Data: doc})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()
		return e.store.Delete(args[0], args[1])
	},
}

var countCmd = &cobra.Command{
	Use:   "count <collection>",
	Short: "Print the number of documents in a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		n, err := e.store.Count(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage equality indexes",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create <collection> <field>",
	Short: "Build an equality index on a field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()
		return e.store.CreateIndex(args[0], args[1])
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop <collection> <field>",
	Short: "Remove an index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()
		return e.store.DropIndex(args[0], args[1])
	},
}

var indexListCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List indexed fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		for _, field := range e.store.ListIndexes(args[0]) {
			fmt.Fprintln(cmd.OutOrStdout(), field)
		}
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <collection>",
	Short: "Run a fanout query and print one JSON line per document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := parseRequest(whereFlags, limitFlag)
		if err != nil {
			return err
		}
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		q, err := api.BuildQuery(e.store, args[0], req, api.FanoutOptions(e.cfg.Fanout, e.log)...)
		if err != nil {
			return err
		}

		out := json.NewEncoder(cmd.OutOrStdout())
		res, err := q.Get(cmd.Context(), func(_ context.Context, b fanout.Batch) error {
			for _, d := range b.Docs {
				if err := out.Encode(api.Doc{ID: d.ID(), Data: d.Data()}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		e.log.Info("query complete",
			"returned", len(res.Docs),
			"variants", res.Stats.Variants,
			"deferred", res.Stats.Deferred,
			"duplicates", res.Stats.Duplicates,
			"rejected", res.Stats.Rejected)
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <collection>",
	Short: "Print the physical plan of a query without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := parseRequest(whereFlags, limitFlag)
		if err != nil {
			return err
		}
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		q, err := api.BuildQuery(e.store, args[0], req, api.FanoutOptions(e.cfg.Fanout, e.log)...)
		if err != nil {
			return err
		}
		return printJSON(cmd, q.Plan())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <collection>",
	Short: "Insert sample users with roles, ages and tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.store.Close()

		ids, err := e.store.InsertMany(args[0], sampleUsers(seedCount))
		if err != nil {
			return err
		}
		e.log.Info("seeded", "collection", args[0], "count", len(ids))
		return nil
	},
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseRequest turns --where values of the form "field op value" into a
// query request. The value is decoded as JSON and falls back to the raw
// string.
func parseRequest(wheres []string, limit int) (api.QueryRequest, error) {
	req := api.QueryRequest{Limit: limit}
	for _, w := range wheres {
		parts := strings.Fields(w)
		if len(parts) < 3 {
			return req, fmt.Errorf("invalid --where %q: want \"field op value\"", w)
		}
		raw := strings.TrimSpace(w)
		raw = strings.TrimSpace(strings.TrimPrefix(raw, parts[0]))
		raw = strings.TrimSpace(strings.TrimPrefix(raw, parts[1]))

		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		req.Where = append(req.Where, api.WhereClause{Field: parts[0], Op: parts[1], Value: value})
	}
	return req, nil
}

var sampleRoles = []string{"admin", "editor", "viewer"}

func sampleUsers(n int) []db.Document {
	docs := make([]db.Document, n)
	for i := range docs {
		docs[i] = db.Document{
			db.FieldID: fmt.Sprintf("user-%03d", i),
			"name":     fmt.Sprintf("User %d", i),
			"role":     sampleRoles[i%len(sampleRoles)],
			"age":      18 + i%50,
			"tags":     []string{fmt.Sprintf("team-%d", i%4), fmt.Sprintf("level-%d", i%3)},
		}
	}
	return docs
}
