// Package main is the ts2workflows command line interface: it compiles
// structured program definitions into GCP Cloud Workflows YAML, optionally
// serving the compiler over HTTP or deploying the output.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aajanki/ts2workflows-sub001/pkg/api"
	"github.com/aajanki/ts2workflows-sub001/pkg/compiler"
	"github.com/aajanki/ts2workflows-sub001/pkg/deploy"
	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "ts2workflows [flags] file...",
	Short:         "Compile structured programs to GCP Cloud Workflows YAML",
	Args:          cobra.MinimumNArgs(1),
	RunE:          runCompile,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compile service over HTTP",
	RunE:  runServe,
}

var deployCmd = &cobra.Command{
	Use:   "deploy [flags] file...",
	Short: "Compile and deploy workflows to the Workflows API",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeploy,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("ts2workflows version {{.Version}}\n")

	rootCmd.Flags().String("out", "", "Output directory (default stdout)")
	rootCmd.Flags().Bool("watch", false, "Watch input files and recompile on change")

	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8890, env PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")

	deployCmd.Flags().String("project", "", "GCP project ID (env PROJECT)")
	deployCmd.Flags().String("location", "", "GCP location (default us-central1, env LOCATION)")
	deployCmd.Flags().String("endpoint", "", "Workflows API endpoint override, e.g. a local emulator (env WORKFLOWS_ENDPOINT)")

	rootCmd.AddCommand(serveCmd, deployCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if types.IsInternalError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	watch, _ := cmd.Flags().GetBool("watch")

	if watch {
		if err := compileFiles(args, outDir); err != nil {
			// In watch mode a failing compile is logged, not fatal.
			log.Printf("compile error: %v", err)
		}
		return watchAndCompile(args, outDir)
	}
	return compileFiles(args, outDir)
}

func compileFiles(paths []string, outDir string) error {
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		out, err := compiler.Compile(source)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		if outDir == "" {
			if _, err := os.Stdout.Write(out); err != nil {
				return err
			}
			continue
		}
		target := filepath.Join(outDir, outputName(path))
		if err := os.WriteFile(target, out, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
		log.Printf("Compiled %s -> %s", path, target)
	}
	return nil
}

// outputName derives the output file name from the input path: the base name
// with the extension replaced by .yaml, keeping a .wf marker out of the way.
func outputName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSuffix(base, ".wf")
	return base + ".yaml"
}

func runServe(cmd *cobra.Command, args []string) error {
	port := envOrDefault("PORT", "8890")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}
	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	server := api.New()
	log.Printf("Compile service listening on %s", addr)
	return server.Listen(addr)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	project := envOrDefault("PROJECT", "")
	if v, _ := cmd.Flags().GetString("project"); v != "" {
		project = v
	}
	if project == "" {
		return fmt.Errorf("a GCP project is required (--project or PROJECT)")
	}
	location := envOrDefault("LOCATION", "us-central1")
	if v, _ := cmd.Flags().GetString("location"); v != "" {
		location = v
	}
	endpoint := os.Getenv("WORKFLOWS_ENDPOINT")
	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		endpoint = v
	}

	ctx := context.Background()
	deployer, err := deploy.New(ctx, deploy.Config{Project: project, Location: location, Endpoint: endpoint})
	if err != nil {
		return err
	}
	defer deployer.Close()

	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		out, err := compiler.Compile(source)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		id := strings.TrimSuffix(outputName(path), ".yaml")
		wf, err := deployer.Deploy(ctx, id, out)
		if err != nil {
			return fmt.Errorf("deploying %s: %w", path, err)
		}
		log.Printf("Deployed %s as %s", path, wf.GetName())
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
