package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"adline/internal/app"
	"adline/internal/catalog"
	"adline/internal/config"
	"adline/internal/db"
	"adline/internal/domain"
	"adline/internal/editor"
	"adline/internal/logging"
	"adline/internal/migrate"
	"adline/internal/repo"
	"adline/internal/review"
	"adline/internal/rotation"
	"adline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "adl",
	Short: "Adline CLI",
	Long: `Adline manages ads that are reviewed on chain before they are shown.
- Draft: an ad you are still editing; it lives in the workspace store.
- Review: publishing the ad content, deploying a voting contract and starting the vote.
- Catalog: your ads with statuses refreshed from their voting contracts.
- Rotation: approved ads whose targeting matches a viewer.
- Event log: every stored change, view with 'adl events tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ADLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("account", "", "account address (overrides config)")
	rootCmd.PersistentFlags().String("node-url", "", "node RPC url (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config)")
	for _, name := range []string{"workspace", "json", "account", "node-url", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(adCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(rotationCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- ads ---

func adCmd() *cobra.Command {
	ad := &cobra.Command{
		Use:   "ad",
		Short: "Manage ads",
		Long:  "Ads are drafts until submitted for review. Fields: title, url, cover image and the targeting (location, language, age, os, stake).",
	}
	ad.AddCommand(adListCmd())
	ad.AddCommand(adShowCmd())
	ad.AddCommand(adCreateCmd())
	ad.AddCommand(adEditCmd())
	ad.AddCommand(adDeleteCmd())
	return ad
}

type adFlags struct {
	title, url, coverFile, location, language, os, stake string
	age                                                  int
}

func (f *adFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "ad title")
	cmd.Flags().StringVar(&f.url, "url", "", "ad url")
	cmd.Flags().StringVar(&f.coverFile, "cover", "", "cover image file")
	cmd.Flags().StringVar(&f.location, "location", "", "target location")
	cmd.Flags().StringVar(&f.language, "language", "", "target language")
	cmd.Flags().IntVar(&f.age, "age", 0, "minimum viewer age")
	cmd.Flags().StringVar(&f.os, "os", "", "target operating system")
	cmd.Flags().StringVar(&f.stake, "stake", "", "minimum viewer stake")
}

// patch holds the flags the user set explicitly.
func (f *adFlags) patch(cmd *cobra.Command) (domain.AdPatch, error) {
	var p domain.AdPatch
	changed := cmd.Flags().Changed
	if changed("title") {
		p.Title = &f.title
	}
	if changed("url") {
		p.URL = &f.url
	}
	if changed("cover") {
		data, err := os.ReadFile(f.coverFile)
		if err != nil {
			return p, fmt.Errorf("read cover: %w", err)
		}
		p.Cover = &data
	}
	if changed("location") {
		p.Location = &f.location
	}
	if changed("language") {
		p.Language = &f.language
	}
	if changed("age") {
		p.Age = &f.age
	}
	if changed("os") {
		p.OS = &f.os
	}
	if changed("stake") {
		d, err := decimal.NewFromString(f.stake)
		if err != nil {
			return p, fmt.Errorf("invalid --stake %q", f.stake)
		}
		p.Stake = &d
	}
	return p, nil
}

func adListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored ads",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				status = string(st)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ads, err := a.Store.ListAll(ctx)
				if err != nil {
					return err
				}
				var out []domain.Ad
				for _, ad := range ads {
					if status == "" || catalog.Matches(ad.Status, status) {
						out = append(out, ad)
					}
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				printAds(out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func adShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an ad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ad, err := a.Store.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(ad)
			})
		},
	}
}

func adCreateCmd() *cobra.Command {
	var f adFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft ad",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(f.title) == "" {
				return fmt.Errorf("--title required")
			}
			p, err := f.patch(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return runEdit(ctx, a.NewEdit(""), p)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func adEditCmd() *cobra.Command {
	var f adFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an ad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.patch(cmd)
			if err != nil {
				return err
			}
			if p.Empty() {
				return fmt.Errorf("nothing to change")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return runEdit(ctx, a.NewEdit(args[0]), p)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func runEdit(ctx context.Context, e *editor.EditWorkflow, p domain.AdPatch) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	ad, err := e.Update(p)
	if err != nil {
		return err
	}
	if problems := editor.Problems(ad); len(problems) > 0 {
		return fmt.Errorf("ad is not valid: %s", strings.Join(problems, "; "))
	}
	if err := e.Submit(ctx); err != nil {
		return err
	}
	return printResult(e.Ad(), fmt.Sprintf("saved ad %s", e.Ad().ID))
}

func adDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an ad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Catalog.Load(ctx); err != nil {
					return err
				}
				if err := a.Catalog.Remove(ctx, args[0]); err != nil {
					return err
				}
				return printResult(map[string]string{"deleted": args[0]}, "deleted "+args[0])
			})
		},
	}
}

// --- catalog ---

func catalogCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show ads with statuses from their voting contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Catalog.Load(ctx); err != nil {
					return err
				}
				v, err := a.Catalog.Filter(filter)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				printAds(v.Ads)
				fmt.Printf("%d of %d ads, total spent %s", len(v.Ads), v.Total, v.TotalSpent)
				if v.OracleFailed > 0 {
					fmt.Printf(" (%d statuses could not be refreshed)", v.OracleFailed)
				}
				fmt.Println()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", catalog.DefaultFilter, "status filter")
	return cmd
}

// --- review ---

func reviewCmd() *cobra.Command {
	rv := &cobra.Command{
		Use:   "review",
		Short: "Submit ads for on-chain review",
	}
	rv.AddCommand(reviewSubmitCmd())
	return rv
}

func reviewSubmitCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Publish the ad, deploy its voting contract and start the vote",
		Long:  "Runs the whole review and waits until the start-voting transaction is mined or a step fails.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Catalog.Load(ctx); err != nil {
					return err
				}
				transitions, stop := a.Feed.Subscribe(0)
				defer stop()
				if _, err := a.Catalog.SelectForReview(args[0]); err != nil {
					return err
				}
				if err := a.Review.Submit(); err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(ctx, wait)
				defer cancel()
				return awaitReview(ctx, a.Review, transitions)
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Minute, "maximum time to wait for mining")
	return cmd
}

// awaitReview follows the session until it returns to idle or stops in a failure.
func awaitReview(ctx context.Context, wf *review.Workflow, transitions <-chan review.Transition) error {
	check := time.NewTicker(time.Second)
	defer check.Stop()
	quiet := viper.GetBool("json")
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("review of %s still %s: %w", wf.Snapshot().Ad.ID, wf.State(), ctx.Err())
		case t := <-transitions:
			if !quiet {
				fmt.Printf("%s  %s -> %s\n", t.At.Format(time.RFC3339), t.From, t.To)
			}
			switch {
			case t.To == review.Idle:
				return printResult(map[string]any{"ad_id": t.AdID, "state": t.To}, "review started for "+t.AdID)
			case t.To == review.MiningFailed, t.To == review.StartVoteFailed,
				t.From == review.Submitting && t.To == review.Previewing:
				snap := wf.Snapshot()
				return fmt.Errorf("review stopped in %s: %v", t.To, snap.LastErr)
			}
		case <-check.C:
			if snap := wf.Snapshot(); snap.Stalled {
				return fmt.Errorf("start voting transaction of %s disappeared: %v", snap.Ad.ID, snap.LastErr)
			}
		}
	}
}

// --- rotation ---

func rotationCmd() *cobra.Command {
	var (
		address, language, osName, stake string
		age                              int
	)
	cmd := &cobra.Command{
		Use:   "rotation",
		Short: "Approved ads targeted at a viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.Identity{Address: address, Age: age, Language: language, OS: osName, Stake: decimal.Zero}
			if stake != "" {
				d, err := decimal.NewFromString(stake)
				if err != nil {
					return fmt.Errorf("invalid --stake %q", stake)
				}
				id.Stake = d
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if id.Address == "" {
					id.Address = a.Config.Account.Address
				}
				slots, err := a.Rotation.Select(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(slots)
				}
				printSlots(slots)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "viewer address (defaults to the account)")
	cmd.Flags().IntVar(&age, "age", 0, "viewer age")
	cmd.Flags().StringVar(&stake, "stake", "", "viewer stake")
	cmd.Flags().StringVar(&language, "language", "", "viewer language")
	cmd.Flags().StringVar(&osName, "os", "", "viewer operating system")
	return cmd
}

// --- events ---

func eventsCmd() *cobra.Command {
	ev := &cobra.Command{
		Use:   "events",
		Short: "Event log",
		Long:  "The diary of every stored change: ads created, saved, submitted for review and deleted.",
	}
	ev.AddCommand(eventsTailCmd())
	return ev
}

func eventsTailCmd() *cobra.Command {
	var n int
	var evtType, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				evts, err := a.Store.LatestEvents(ctx, n, 0, evtType, "", entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor"})
				for _, e := range evts {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "ad id")
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "adline.yml holds the node endpoint, the ad store, the account, the review amounts and the voting contract parameters.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate adline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default adline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(viper.GetString("account"))), 0o644); err != nil {
				return err
			}
			return printResult(map[string]string{"path": path}, "wrote "+path)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// --- api keys ---

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for adl serve",
	}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyDeleteCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var name, account string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo, cfg *config.Config) error {
				if account == "" {
					account = cfg.Account.Address
				}
				key, plain, err := r.CreateAPIKey(ctx, account, name)
				if err != nil {
					return err
				}
				return printResult(map[string]string{"id": key.ID, "account": key.Account, "key": plain},
					fmt.Sprintf("api key %s for %s: %s", key.ID, key.Account, plain))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&account, "for", "", "account the key acts as (defaults to the configured account)")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo, cfg *config.Config) error {
				keys, err := r.ListAPIKeys(ctx, "")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Account", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Account, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func apikeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo, cfg *config.Config) error {
				if err := r.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				return printResult(map[string]string{"deleted": args[0]}, "deleted "+args[0])
			})
		},
	}
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Account.Address == "" {
				return fmt.Errorf("account.address is required to serve")
			}
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("ADLINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("ADLINE_JWT_SECRET is required for bearer auth")
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			authCfg.Logger = logger.Named("auth")

			ctx := cmd.Context()
			a, err := app.Open(ctx, cfg, app.Options{Workspace: viper.GetString("workspace"), Logger: logger})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Catalog.Load(ctx); err != nil {
				logger.Warn("initial catalog load failed", zap.Error(err))
			}
			hooks := server.NewWebhookDispatcher(a.Store, cfg.Account.Address, cfg.Webhooks, logger.Named("webhooks"))
			go hooks.Run(ctx)

			handler, err := server.New(server.Config{App: a, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			logger.Info("serving adline API", zap.String("addr", addr), zap.String("base_path", basePath))
			fmt.Printf("Serving adline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("account"); v != "" {
		cfg.Account.Address = v
	}
	if v := viper.GetString("node-url"); v != "" {
		cfg.Node.URL = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	a, err := app.Open(ctx, cfg, app.Options{Workspace: viper.GetString("workspace"), Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo, *config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.New(conn, cfg.Account.Address), cfg)
}

func printAds(ads []domain.Ad) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Voting", "Updated"})
	for _, ad := range ads {
		tw.AppendRow(table.Row{ad.ID, ad.Title, ad.Status, ad.VotingAddress, ad.UpdatedAt})
	}
	tw.Render()
}

func printSlots(slots []rotation.Slot) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Burner", "Content", "Voting", "Amount"})
	for _, s := range slots {
		tw.AppendRow(table.Row{s.Burner, s.ContentID, s.VotingAddress, s.Amount})
	}
	tw.Render()
}

func printResult(v any, text string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(text)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
