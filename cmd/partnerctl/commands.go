package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/app"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/logging"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:           "partnerctl",
	Short:         "Operator tools for the partner engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	rootName   string
	rootEmail  string
	rootMobile string

	tokenUser  string
	tokenAdmin bool
	tokenTTL   time.Duration
)

func init() {
	bootstrapCmd.Flags().StringVar(&rootName, "name", "", "name of the root partner")
	bootstrapCmd.Flags().StringVar(&rootEmail, "email", "", "email of the root partner")
	bootstrapCmd.Flags().StringVar(&rootMobile, "mobile", "", "mobile number of the root partner")
	_ = bootstrapCmd.MarkFlagRequired("name")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "subject user id, random when empty")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "grant the admin capability")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")

	leaderboardCmd.AddCommand(leaderboardRefreshCmd)
	passiveCmd.AddCommand(passiveMatureCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(passiveCmd)
	rootCmd.AddCommand(tokenCmd)
}

// env is what a command needs to reach the store
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger
}

func connect() (*env, error) {
	cfg := config.LoadConfig()
	logger, err := logging.New(cfg.Environment)
	if err != nil {
		return nil, err
	}
	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}

// engine wires the services without a queue, so events apply inline
func (e *env) engine(client *redis.Client) *app.Engine {
	return app.New(e.cfg, e.db, client, nil, e.logger)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		if err := database.Migrate(e.db, e.logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap-root",
	Short: "Create the root partner of an empty network",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		user, err := e.engine(nil).Services.Referral.RegisterRoot(cmd.Context(), referral.NewPartner{
			Name:   rootName,
			Email:  rootEmail,
			Mobile: rootMobile,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "root partner %s created with referral code %d\n", user.ID, user.ReferralCode)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check the referral graph and its counters for drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		report, err := e.engine(nil).Services.Referral.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.String())
		if !report.Healthy() {
			return errors.New("referral graph is inconsistent")
		}
		return nil
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Leaderboard maintenance",
}

var leaderboardRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the leaderboard snapshot and store it in Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		client := redis.NewClient(&redis.Options{
			Addr:     e.cfg.Redis.URL,
			Password: e.cfg.Redis.Password,
			DB:       e.cfg.Redis.DB,
		})
		defer client.Close()

		snap, err := e.engine(client).Services.Leaderboard.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "leaderboard refreshed: %d entries\n", len(snap.Entries))
		return nil
	},
}

var passiveCmd = &cobra.Command{
	Use:   "passive",
	Short: "Passive income maintenance",
}

var passiveMatureCmd = &cobra.Command{
	Use:   "mature",
	Short: "Pay every passive tier that has come due",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		summary, err := e.engine(nil).Services.Commission.MaturePassive(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "passive maturity: %d applied, %d failed\n", summary.Applied, summary.Failed)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.IsProduction() {
			return errors.New("tokens are issued by the identity service in production")
		}
		subject := uuid.New()
		if tokenUser != "" {
			id, err := uuid.Parse(tokenUser)
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			subject = id
		}
		token, err := utils.GenerateToken(cfg.JWT.Secret, subject, "", tokenAdmin, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
