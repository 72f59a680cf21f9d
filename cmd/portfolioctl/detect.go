package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/onelink-portfolio/internal/classifier"
	"github.com/sakif/onelink-portfolio/internal/demourl"
)

// readmeText returns the README passed by path, "-" for stdin, or "".
func readmeText(cmd *cobra.Command, path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading README from stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading README: %w", err)
	}
	return string(b), nil
}

func newDetectCmd() *cobra.Command {
	var homepage, readme string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Print the demo URL found in a homepage and README",
		Long: `Run the demo-URL detector. The homepage wins when it is set; otherwise the
first README link on a known hosting domain is used. Prints nothing when no
demo URL is found.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readmeText(cmd, readme)
			if err != nil {
				return err
			}
			if url := demourl.Detect(homepage, text); url != "" {
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&homepage, "homepage", "", "Repository homepage field")
	cmd.Flags().StringVar(&readme, "readme", "", `README file, or "-" for stdin`)
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var (
		deployedURL, homepage, description, readme string
		asJSON                                     bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Print the project status for the given repository facts",
		Long: `Run the project classifier. Without --deployed-url the demo URL is first
detected from --homepage and --readme, the same way a sync pass does it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readmeText(cmd, readme)
			if err != nil {
				return err
			}

			url := deployedURL
			if url == "" {
				url = demourl.Detect(homepage, text)
			}
			status := classifier.Classify(url, homepage != "", description)

			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintln(out, status)
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{
				"status":       string(status),
				"deployed_url": url,
			})
		},
	}

	cmd.Flags().StringVar(&deployedURL, "deployed-url", "", "Known demo URL")
	cmd.Flags().StringVar(&homepage, "homepage", "", "Repository homepage field")
	cmd.Flags().StringVar(&description, "description", "", "Repository description")
	cmd.Flags().StringVar(&readme, "readme", "", `README file, or "-" for stdin`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status and deployed URL as JSON")
	return cmd
}
