// onboardctl drives the onboarding flow against a running apiserver. Each
// invocation restores the session from redis, applies one action, and prints
// the resulting session state, so a flow can be exercised step by step.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/salesforge-io/salesforge/internal/models"
	"github.com/salesforge-io/salesforge/internal/onboarding"
	"github.com/salesforge-io/salesforge/internal/onboarding/sessionstore"
	"github.com/salesforge-io/salesforge/pkg/client"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	// Override to capitalize "Show"
	cli.HelpFlag.(*cli.BoolFlag).Usage = "Show help"
	app := &cli.Command{
		Name:  "onboardctl",
		Usage: "Drive the salesforge onboarding flow from the command line",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Value:   false,
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("SFORGE_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "service-url",
				Value:   "http://localhost:8080",
				Usage:   "Api server URL",
				Sources: cli.EnvVars("SFORGE_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "auth-sub",
				Usage:   "Identity subject forwarded to the server",
				Sources: cli.EnvVars("SFORGE_AUTH_SUB"),
			},
			&cli.StringFlag{
				Name:    "auth-email",
				Usage:   "Identity email forwarded to the server",
				Sources: cli.EnvVars("SFORGE_AUTH_EMAIL"),
			},
			&cli.StringFlag{
				Name:    "auth-username",
				Usage:   "Identity username forwarded to the server",
				Sources: cli.EnvVars("SFORGE_AUTH_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "redis-server",
				Value:   "localhost:6379",
				Usage:   "Redis host and port, used for onboarding session storage",
				Sources: cli.EnvVars("SFORGE_REDIS_SERVER"),
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Value:   1,
				Usage:   "Redis database to use",
				Sources: cli.EnvVars("SFORGE_REDIS_DB"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show the current onboarding session",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return nil
					})
				},
			},
			{
				Name:      "submit-website",
				Usage:     "Submit the company website",
				ArgsUsage: "URL",
				Action: func(ctx context.Context, command *cli.Command) error {
					rawURL := command.Args().First()
					if rawURL == "" {
						return fmt.Errorf("a website url is required")
					}
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.SubmitWebsite(ctx, rawURL)
					})
				},
			},
			{
				Name:  "manual",
				Usage: "Describe the company by hand instead of a website",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "company-name", Required: true, Usage: "Company name"},
					&cli.StringFlag{Name: "industry", Usage: "Industry"},
					&cli.StringFlag{Name: "company-size", Usage: "Company size"},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						if err := r.ChooseManual(ctx); err != nil {
							return err
						}
						return r.SubmitManualFacts(ctx, onboarding.ManualFacts{
							CompanyName: command.String("company-name"),
							Industry:    command.String("industry"),
							CompanySize: command.String("company-size"),
						})
					})
				},
			},
			{
				Name:      "select",
				Usage:     "Select one of the presented candidate organizations",
				ArgsUsage: "ORG-ID",
				Action: func(ctx context.Context, command *cli.Command) error {
					orgID, err := uuid.Parse(command.Args().First())
					if err != nil {
						return fmt.Errorf("invalid organization id: %w", err)
					}
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.SelectOrganization(ctx, orgID)
					})
				},
			},
			{
				Name:  "create-new",
				Usage: "Reject the candidates and create a new organization",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.CreateNewOrganization(ctx)
					})
				},
			},
			{
				Name:  "confirm",
				Usage: "Accept the enrichment result and move on to skills",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.ConfirmEnrichment(ctx)
					})
				},
			},
			{
				Name:  "retry",
				Usage: "Retry a failed or timed out enrichment",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.RetryEnrichment(ctx)
					})
				},
			},
			{
				Name:  "back",
				Usage: "Return to website input, cleaning up any provisional organization",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.ReturnToInput(ctx)
					})
				},
			},
			skillCommand(),
			{
				Name:  "save",
				Usage: "Save the skill configuration and finish onboarding",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.SaveSkills(ctx)
					})
				},
			},
			{
				Name:  "abandon",
				Usage: "Drop the onboarding session",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.Abandon(ctx)
					})
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func skillCommand() *cli.Command {
	kindArg := func(command *cli.Command) (models.SkillKind, error) {
		kind := models.SkillKind(command.Args().First())
		if !kind.Valid() {
			return "", fmt.Errorf("unknown skill kind %q", command.Args().First())
		}
		return kind, nil
	}
	return &cli.Command{
		Name:  "skill",
		Usage: "Adjust one skill block of the draft",
		Commands: []*cli.Command{
			{
				Name:      "edit",
				Usage:     "Replace a block's content with the given JSON",
				ArgsUsage: "KIND JSON",
				Action: func(ctx context.Context, command *cli.Command) error {
					kind, err := kindArg(command)
					if err != nil {
						return err
					}
					content := command.Args().Get(1)
					if !json.Valid([]byte(content)) {
						return fmt.Errorf("content must be valid json")
					}
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.EditSkill(ctx, kind, []byte(content))
					})
				},
			},
			{
				Name:      "skip",
				Usage:     "Skip a block",
				ArgsUsage: "KIND",
				Action: func(ctx context.Context, command *cli.Command) error {
					kind, err := kindArg(command)
					if err != nil {
						return err
					}
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.SkipSkill(ctx, kind)
					})
				},
			},
			{
				Name:      "reset",
				Usage:     "Restore a block to its AI default",
				ArgsUsage: "KIND",
				Action: func(ctx context.Context, command *cli.Command) error {
					kind, err := kindArg(command)
					if err != nil {
						return err
					}
					return withResolver(ctx, command, func(ctx context.Context, r *onboarding.Resolver) error {
						return r.ResetSkill(ctx, kind)
					})
				},
			},
		},
	}
}

// withResolver restores the caller's session, runs the action, waits for any
// enrichment supervision it kicked off, and prints the resulting session.
func withResolver(ctx context.Context, command *cli.Command, action func(context.Context, *onboarding.Resolver) error) error {
	logger, err := getLogger(command)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	backend := client.New(command.String("service-url"), client.Identity{
		Sub:      command.String("auth-sub"),
		Email:    command.String("auth-email"),
		UserName: command.String("auth-username"),
	})

	user, err := backend.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("unable to reach the api server: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: command.String("redis-server"),
		DB:   int(command.Int("redis-db")),
	})
	defer func() {
		_ = redisClient.Close()
	}()

	resolver := onboarding.NewResolver(logger.Sugar(), backend, sessionstore.NewRedisStore(redisClient))
	if err := resolver.Begin(ctx, user.ID, user.Email); err != nil {
		return err
	}

	if err := action(ctx, resolver); err != nil {
		return err
	}
	resolver.Wait()

	session := resolver.Session()
	out, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func getLogger(command *cli.Command) (*zap.Logger, error) {
	if command.Bool("debug") {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}
