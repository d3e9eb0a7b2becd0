package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"solflow/backend/internal/config"
	"solflow/backend/internal/logging"
	"solflow/backend/internal/repository"
	"solflow/backend/internal/services"
	"solflow/backend/pkg/models"
)

func main() {
	var (
		envFile string
		owner   string
	)

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Insert sample workflows into the Postgres workflow store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(envFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return seed(cmd.Context(), cfg, owner, logger)
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Path to .env file")
	cmd.Flags().StringVar(&owner, "owner", "", "Wallet address recorded as owner of the seeded workflows")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, cfg *config.Config, owner string, logger *logging.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgresWorkflowStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	svc := services.NewWorkflowService(store, logger)

	// Check for existing workflows to prevent duplicates
	existing, err := svc.List(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to list existing workflows: %w", err)
	}
	existingNames := make(map[string]bool, len(existing))
	for _, w := range existing {
		existingNames[w.Name] = true
	}

	for _, input := range sampleWorkflows() {
		if existingNames[input.Name] {
			logger.Info("Workflow already exists, skipping", "name", input.Name)
			continue
		}
		if result := services.ValidateStructure(input.Nodes, input.Edges); !result.Valid {
			return fmt.Errorf("sample workflow %q is malformed: %v", input.Name, result.Errors)
		}
		w, err := svc.Create(ctx, input, owner)
		if err != nil {
			return fmt.Errorf("failed to create workflow %s: %w", input.Name, err)
		}
		logger.Info("Created workflow", "name", w.Name, "id", w.ID)
	}

	logger.Info("Seeding complete")
	return nil
}

func node(id, nodeType string, x, y float64, data map[string]any) models.Node {
	n := models.Node{
		"id":       id,
		"type":     nodeType,
		"position": map[string]any{"x": x, "y": y},
	}
	if data != nil {
		n["data"] = data
	}
	return n
}

func edge(source, target string) models.Edge {
	return models.Edge{"id": "e-" + source + "-" + target, "source": source, "target": target}
}

func sampleWorkflows() []models.CreateWorkflowInput {
	const wallet = "11111111111111111111111111111111"
	return []models.CreateWorkflowInput{
		{
			Name:        "Wallet balance watch",
			Description: "Checks a wallet balance and logs it when it drops below a threshold.",
			Nodes: []models.Node{
				node("rpc", "rpc-connection", 0, 0, map[string]any{"endpoint": "https://api.devnet.solana.com"}),
				node("wallet", "input-publickey", 0, 160, map[string]any{"value": wallet}),
				node("balance", "get-balance", 240, 80, nil),
				node("sol", "lamports-to-sol", 480, 80, nil),
				node("threshold", "input-number", 480, 240, map[string]any{"value": 1}),
				node("check", "logic-compare", 720, 160, map[string]any{"operator": "<"}),
				node("out", "output-display", 960, 160, map[string]any{"label": "Balance is low"}),
			},
			Edges: []models.Edge{
				edge("rpc", "balance"), edge("wallet", "balance"), edge("balance", "sol"),
				edge("sol", "check"), edge("threshold", "check"), edge("check", "out"),
			},
		},
		{
			Name:        "Token holdings report",
			Description: "Lists the SPL tokens held by a wallet.",
			Nodes: []models.Node{
				node("rpc", "rpc-connection", 0, 0, nil),
				node("wallet", "wallet-connect", 0, 160, nil),
				node("tokens", "get-token-accounts", 240, 80, nil),
				node("each", "loop-for-each", 480, 80, nil),
				node("out", "output-display", 720, 80, nil),
			},
			Edges: []models.Edge{
				edge("rpc", "tokens"), edge("wallet", "tokens"), edge("tokens", "each"), edge("each", "out"),
			},
		},
		{
			Name:        "Bonding curve migration alert",
			Description: "Polls a launch token and reports when it is ready to migrate.",
			Nodes: []models.Node{
				node("token", "input-string", 0, 0, map[string]any{"label": "Token address"}),
				node("curve", "bags-bonding-curve", 240, 0, nil),
				node("migration", "bags-migration-check", 240, 160, nil),
				node("out", "output-display", 480, 80, nil),
			},
			Edges: []models.Edge{
				edge("token", "curve"), edge("token", "migration"), edge("curve", "out"), edge("migration", "out"),
			},
		},
	}
}
