package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-rcm/internal/api"
	"github.com/miradorstack/mirador-rcm/internal/models"
)

func newScoreCmd(opts *globalOptions) *cobra.Command {
	var req api.UpsertCriticalityRequest
	var save bool
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the RPN and criticality index of a failure mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, release, err := connect(opts)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := opts.context()
			defer cancel()

			if save {
				resp, err := eng.UpsertCriticality(ctx, &req)
				if err != nil {
					return err
				}
				return emit(cmd, opts, resp, func() string { return renderCriticality(resp.Criticality, resp.Created) })
			}
			crit, err := eng.ScoreCriticality(ctx, &api.ScoreCriticalityRequest{
				FailureModeID: req.FailureModeID,
				Severity:      req.Severity,
				Occurrence:    req.Occurrence,
				Detection:     req.Detection,
			})
			if err != nil {
				return err
			}
			return emit(cmd, opts, crit, func() string { return renderCriticality(*crit, false) })
		},
	}
	cmd.Flags().StringVar(&req.FailureModeID, "failure-mode", "", "Failure mode identifier")
	cmd.Flags().IntVarP(&req.Severity, "severity", "s", 0, "Severity rating 1-10")
	cmd.Flags().IntVarP(&req.Occurrence, "occurrence", "o", 0, "Occurrence rating 1-10")
	cmd.Flags().IntVarP(&req.Detection, "detection", "d", 0, "Detection rating 1-10")
	cmd.Flags().StringVar(&req.ConsequenceType, "consequence", "", "Consequence type recorded with a saved rating")
	cmd.Flags().BoolVar(&save, "save", false, "Store the rating, replacing any earlier rating of the failure mode")
	_ = cmd.MarkFlagRequired("severity")
	_ = cmd.MarkFlagRequired("occurrence")
	_ = cmd.MarkFlagRequired("detection")
	return cmd
}

func newDecideCmd(opts *globalOptions) *cobra.Command {
	var req api.DecideStrategyRequest
	var beta, eta float64
	var unit string
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Select a maintenance strategy from consequence and feasibility answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if beta > 0 || eta > 0 {
				req.Reliability = &models.WeibullParameters{Beta: beta, Eta: eta, TimeUnit: unit}
			}
			eng, release, err := connect(opts)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := opts.context()
			defer cancel()

			decision, err := eng.DecideStrategy(ctx, &req)
			if err != nil {
				return err
			}
			return emit(cmd, opts, decision, func() string { return renderDecision(*decision) })
		},
	}
	f := cmd.Flags()
	f.BoolVar(&req.Flags.HiddenFunction, "hidden", false, "Function is hidden in normal operation")
	f.BoolVar(&req.Flags.FailureEvident, "evident", false, "Failure is evident to operators")
	f.BoolVar(&req.Flags.SafetyConsequence, "safety", false, "Failure has safety consequences")
	f.BoolVar(&req.Flags.EnvironmentalConsequence, "environmental", false, "Failure has environmental consequences")
	f.BoolVar(&req.Flags.OperationalConsequence, "operational", false, "Failure has operational consequences")
	f.BoolVar(&req.Flags.EconomicConsequence, "economic", false, "Failure has economic consequences")
	f.BoolVar(&req.Flags.PMFeasible, "pm", false, "Time-based preventive maintenance is feasible")
	f.BoolVar(&req.Flags.CMFeasible, "cm", false, "Condition monitoring is feasible")
	f.BoolVar(&req.Flags.FFFeasible, "ff", false, "A failure-finding test is feasible")
	f.BoolVar(&req.Flags.RTFAcceptable, "rtf", false, "Run-to-failure is acceptable")
	f.Float64Var(&req.MTBF, "mtbf", 0, "MTBF of the protective device, sizes failure-finding intervals")
	f.Float64Var(&beta, "beta", 0, "Weibull shape, sizes preventive intervals")
	f.Float64Var(&eta, "eta", 0, "Weibull scale, sizes preventive intervals")
	f.StringVar(&unit, "unit", "hours", "Time unit of eta and mtbf")
	return cmd
}

func newEvaluateCmd(opts *globalOptions) *cobra.Command {
	var req api.EvaluateReliabilityRequest
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Sample the Weibull reliability, hazard and density over a horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, release, err := connect(opts)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := opts.context()
			defer cancel()

			resp, err := eng.EvaluateReliability(ctx, &req)
			if err != nil {
				return err
			}
			return emit(cmd, opts, resp, func() string { return renderCurve(api.FromCurveResponse(resp)) })
		},
	}
	cmd.Flags().Float64Var(&req.Parameters.Beta, "beta", 0, "Weibull shape")
	cmd.Flags().Float64Var(&req.Parameters.Eta, "eta", 0, "Weibull scale")
	cmd.Flags().Float64Var(&req.Parameters.Horizon, "horizon", 0, "Evaluate over [0, horizon]")
	cmd.Flags().StringVar(&req.Parameters.TimeUnit, "unit", "hours", "Time unit of eta and horizon")
	cmd.Flags().IntVarP(&req.Resolution, "resolution", "n", 10, "Number of intervals to sample")
	return cmd
}

func newFitCmd(opts *globalOptions) *cobra.Command {
	var file, failureMode string
	cmd := &cobra.Command{
		Use:   "fit [time ...]",
		Short: "Fit Weibull parameters by median-rank regression",
		Long: `Fit Weibull parameters from times to failure given as arguments, where a trailing
"+" marks a suspension (e.g. 1400+), or from a YAML/JSON request file holding
observations or failure events with a window.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.FitWeibullRequest
			switch {
			case file != "":
				if err := decodeFile(file, &req); err != nil {
					return err
				}
			case len(args) > 0:
				obs, err := parseObservations(args)
				if err != nil {
					return err
				}
				req.Observations = obs
			default:
				return fmt.Errorf("supply failure times or --file")
			}
			if failureMode != "" {
				req.FailureModeID = failureMode
			}

			eng, release, err := connect(opts)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := opts.context()
			defer cancel()

			resp, err := eng.FitWeibull(ctx, &req)
			if err != nil {
				return err
			}
			return emit(cmd, opts, resp, func() string { return renderFit(*resp) })
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Request file (YAML or JSON)")
	cmd.Flags().StringVar(&failureMode, "failure-mode", "", "Failure mode to fit when events cover several")
	return cmd
}

func newComposeCmd(opts *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose component RAM metrics under a redundancy topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.ComposeSystemRequest
			if err := decodeFile(file, &req); err != nil {
				return err
			}
			eng, release, err := connect(opts)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := opts.context()
			defer cancel()

			res, err := eng.ComposeSystem(ctx, &req)
			if err != nil {
				return err
			}
			return emit(cmd, opts, res, func() string { return renderSystem(*res) })
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Request file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newHierarchyCmd(opts *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "hierarchy",
		Short: "Roll a component tree up to system level",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.ComposeHierarchyRequest
			if err := decodeFile(file, &req); err != nil {
				return err
			}
			eng, release, err := connect(opts)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := opts.context()
			defer cancel()

			resp, err := eng.ComposeHierarchy(ctx, &req)
			if err != nil {
				return err
			}
			return emit(cmd, opts, resp, func() string { return renderHierarchy(req, *resp) })
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Request file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// parseObservations reads times to failure; a trailing "+" marks a suspension.
func parseObservations(args []string) ([]models.Observation, error) {
	obs := make([]models.Observation, 0, len(args))
	for _, arg := range args {
		censored := strings.HasSuffix(arg, "+")
		v, err := strconv.ParseFloat(strings.TrimSuffix(arg, "+"), 64)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", arg, err)
		}
		obs = append(obs, models.Observation{Time: v, Censored: censored})
	}
	return obs, nil
}

// decodeFile reads a YAML or JSON request. YAML is converted through JSON so the request
// types keep a single set of field names.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// emit prints v as JSON or the rendered text.
func emit(cmd *cobra.Command, opts *globalOptions, v any, text func() string) error {
	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(out, text())
	return err
}
