package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"bandscope/internal/analysis/visual"
	"bandscope/internal/colors"
	"bandscope/internal/detector"
	"bandscope/internal/faults"
	"bandscope/internal/imaging"
	"bandscope/internal/resistance"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "decode <band>...",
		Short:   "Decode color band names into a resistance",
		Example: "  bandctl decode Yellow Violet Red Gold",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Detector().Decode(args)
			if err != nil {
				return fmt.Errorf("%s: %w", faults.KindOf(err), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			return nil
		},
	}
}

func (c *cli) encodeCmd() *cobra.Command {
	var tolerance string
	cmd := &cobra.Command{
		Use:     "encode <value>",
		Short:   "Encode a resistance (4.7k, 270, 1M) into band names",
		Example: "  bandctl encode 4.7k --tolerance 5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, ohms, err := c.app.Detector().Encode(args[0], tolerance)
			if err != nil {
				return fmt.Errorf("%s: %w", faults.KindOf(err), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", resistance.Format(ohms), strings.Join(names, " "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tolerance, "tolerance", "t", "", "tolerance percent (5, ±1%)")
	return cmd
}

func (c *cli) analyzeCmd() *cobra.Command {
	var (
		slices    int
		crop      []int
		chartPath string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Detect and decode the bands of a resistor photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			img, format, err := imaging.Decode(f)
			if err != nil {
				return err
			}
			req := detector.ImageRequest{Image: img, Slices: slices}
			if len(crop) != 0 {
				if len(crop) != 4 {
					return fmt.Errorf("--crop takes x,y,w,h")
				}
				req.Crop = image.Rect(crop[0], crop[1], crop[0]+crop[2], crop[1]+crop[3])
			}
			res, err := c.app.Detector().AnalyzeImage(cmd.Context(), req)
			if err != nil {
				return err
			}
			if chartPath != "" {
				in := visual.FromScan(res.Scan, c.app.Palette().Table())
				html, err := visual.RenderScanHTML(in, 0, 0)
				if err != nil {
					return err
				}
				if err := os.WriteFile(chartPath, html, 0o644); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "image    %s %dx%d (%s)\n", args[0], res.Width, res.Height, format)
			fmt.Fprintf(out, "trace    %s\n", res.TraceID)
			fmt.Fprintf(out, "scan     %s -> %s\n", strings.Join(res.Scan.DetectedBands, " "), outcomeText(res.Scan.Outcome))
			fmt.Fprintf(out, "detect   %s -> %s\n", strings.Join(res.Detect.ValueBands, " "), outcomeText(res.Detect.Outcome))
			return nil
		},
	}
	cmd.Flags().IntVar(&slices, "slices", 0, "number of horizontal slices (default from config)")
	cmd.Flags().IntSliceVar(&crop, "crop", nil, "crop rectangle x,y,w,h")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write the scan chart HTML to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func outcomeText(o detector.Outcome) string {
	if o.Decoded() {
		return *o.ResistorValue
	}
	return fmt.Sprintf("(%s) %s", o.ErrorKind, o.Message)
}

func (c *cli) rulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and maintain learned color rules",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List learned rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := c.app.Learner().Rules(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rs) == 0 {
				fmt.Fprintln(out, "No learned rules.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "RGB\tNAME\tSOURCE\tLEARNED")
			fmt.Fprintln(w, "---\t----\t------\t-------")
			for _, r := range rs {
				learned := "-"
				if !r.LearnedAt.IsZero() {
					learned = r.LearnedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Key(), r.Name, r.Source, learned)
			}
			return w.Flush()
		},
	}

	var asJSON bool
	export := &cobra.Command{
		Use:   "export",
		Short: "Print learned rules as YAML (or JSON)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := c.app.Learner().Rules(cmd.Context())
			if err != nil {
				return err
			}
			if rs == nil {
				rs = []colors.Rule{}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rs)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(map[string]any{"rules": rs}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	export.Flags().BoolVar(&asJSON, "json", false, "JSON instead of YAML")

	var rgb string
	learn := &cobra.Command{
		Use:     "learn <color name>",
		Short:   "Teach the correct name for an observed RGB",
		Example: "  bandctl rules learn Red --rgb 200,10,12",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			observed, err := parseRGB(rgb)
			if err != nil {
				return err
			}
			rule, err := c.app.Learner().Learn(cmd.Context(), observed, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "learned %s -> %s\n", rule.Key(), rule.Name)
			return nil
		},
	}
	learn.Flags().StringVar(&rgb, "rgb", "", "observed color as r,g,b")
	_ = learn.MarkFlagRequired("rgb")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every learned rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Learner().Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rules cleared")
			return nil
		},
	}

	rules.AddCommand(list, export, learn, clearCmd)
	return rules
}

func parseRGB(s string) (colors.RGB, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return colors.RGB{}, fmt.Errorf("rgb must be r,g,b, got %q", s)
	}
	var ch [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return colors.RGB{}, fmt.Errorf("rgb channel %q must be 0..255", p)
		}
		ch[i] = uint8(n)
	}
	return colors.RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := c.app.Detector().History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No history.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "WHEN\tKIND\tBANDS\tRESULT\tTRACE")
			for _, r := range recs {
				result := r.Value
				if result == "" {
					result = "(" + r.ErrorKind + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Kind, strings.Join(r.Bands, " "), result, r.TraceID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")
	return cmd
}
