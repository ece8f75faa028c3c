package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"aidr-hq/bastion/pkg/cli"
	"aidr-hq/bastion/pkg/providers/openai"
	"aidr-hq/bastion/pkg/vectorindex"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the similarity index",
}

var indexSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the similarity index and load the built-in examples",
	Long: `Create the OpenSearch k-NN index if it does not exist and store the
built-in prompt injection examples with their embeddings. Document IDs are
derived from the example text, so seeding twice does not duplicate entries.

Requires embeddings.base_url and opensearch.addresses.`,
	Args: cobra.NoArgs,
	RunE: seedIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexSeedCmd)
}

// progressWriter reports each Put to a progress reporter.
type progressWriter struct {
	vectorindex.Writer
	progress cli.ProgressReporter
	done     int
}

func (p *progressWriter) Put(ctx context.Context, doc vectorindex.Document, vector []float32) error {
	if err := p.Writer.Put(ctx, doc, vector); err != nil {
		return err
	}
	p.done++
	p.progress.Update(p.done)
	return nil
}

func seedIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Embeddings.BaseURL == "" {
		return cli.NewConfigError(cfgFile, fmt.Errorf("embeddings.base_url is required"))
	}
	if len(cfg.OpenSearch.Addresses) == 0 {
		return cli.NewConfigError(cfgFile, fmt.Errorf("opensearch.addresses is required"))
	}
	logger, err := newLogger(cfg, cfg.ResolveVersion(Version))
	if err != nil {
		return err
	}

	emb, err := openai.NewEmbeddingsClient(openai.EmbeddingsConfig{
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey,
		Model:      cfg.Embeddings.Model,
		Dimension:  cfg.Embeddings.Dimension,
		Timeout:    cfg.Embeddings.Timeout,
		MaxRetries: cfg.Embeddings.MaxRetries,
	})
	if err != nil {
		return cli.NewCommandError("index seed", err)
	}
	defer emb.Close()

	idx, err := vectorindex.NewOpenSearch(vectorindex.OpenSearchConfig{
		Addresses:          cfg.OpenSearch.Addresses,
		Username:           cfg.OpenSearch.Username,
		Password:           cfg.OpenSearch.Password,
		Index:              cfg.OpenSearch.Index,
		TopK:               cfg.OpenSearch.TopK,
		InsecureSkipVerify: cfg.OpenSearch.InsecureSkipVerify,
	}, logger)
	if err != nil {
		return cli.NewCommandError("index seed", err)
	}

	out := cmd.OutOrStdout()
	docs := vectorindex.Examples()
	progress := cli.NewProgressReporter(out, "Seeding")
	progress.Start(len(docs))

	report, err := vectorindex.Seed(cmd.Context(), &progressWriter{Writer: idx, progress: progress}, emb, emb.Dimension(), docs)
	if err != nil {
		progress.Error(err)
		return cli.NewCommandError("index seed", err)
	}
	progress.Finish()

	if report.Created {
		fmt.Fprintf(out, "✓ Created index %s\n", cfg.OpenSearch.Index)
	}
	fmt.Fprintf(out, "✓ Indexed %d examples\n", report.Indexed)
	return nil
}
