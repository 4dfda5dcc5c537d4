package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/construo/construo-server/internal/forms"
	"github.com/construo/construo-server/internal/render"
	"github.com/construo/construo-server/internal/template"
)

var certificatesCmd = &cobra.Command{
	Use:   "certificates",
	Short: "Certificate tooling",
}

var certificatesGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one certificate PDF per registered participant",
	Long: `Generate certificates for every stored registration.

The template is read from the site configuration; participants are derived
from the registration rows. Documents are written to the configured output
directory, one per participant, in registration order.`,
	RunE: runCertificatesGenerate,
}

func init() {
	certificatesGenerateCmd.Flags().String("config", "construo.yaml", "Path to configuration file (YAML format)")
	certificatesGenerateCmd.Flags().String("output", "", "Output directory (overrides config)")
	if err := viper.BindPFlag("config", certificatesGenerateCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
	}
	if err := viper.BindPFlag("output", certificatesGenerateCmd.Flags().Lookup("output")); err != nil {
		slog.Error("Failed to bind output flag", "error", err)
	}

	certificatesCmd.AddCommand(certificatesGenerateCmd)
}

func runCertificatesGenerate(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	deps, err := buildDeps(ctx)
	if err != nil {
		return err
	}

	siteCfg, err := deps.gateway.SiteConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load site configuration: %w", err)
	}

	doc, err := template.FromSiteConfig(siteCfg)
	if err != nil {
		if errors.Is(err, template.ErrNotConfigured) {
			return fmt.Errorf("no certificate template configured")
		}
		return fmt.Errorf("failed to load certificate template: %w", err)
	}

	regs, err := deps.gateway.Registrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registrations: %w", err)
	}
	if len(regs) == 0 {
		slog.Info("No registrations found, nothing to generate")
		return nil
	}
	participants := forms.Participants(regs)

	outDir := viper.GetString("output")
	if outDir == "" {
		outDir = deps.cfg.Certificates.OutputDir
	}

	pipeline, err := render.NewPipeline(&render.DirSink{Dir: outDir},
		render.WithLogger(slog.Default()),
		render.WithEventLabel(deps.cfg.Certificates.EventLabel),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize render pipeline: %w", err)
	}

	names, err := pipeline.GenerateAll(ctx, doc, participants)
	if err != nil {
		return fmt.Errorf("certificate generation failed after %d documents: %w", len(names), err)
	}

	slog.Info("Certificate generation complete", "documents", len(names), "output", outDir)
	return nil
}
