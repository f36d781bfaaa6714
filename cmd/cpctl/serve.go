package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"gocp/internal/api"
	"gocp/internal/container"
	"gocp/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		opts       dataOptions
		addr       string
		regression string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Train, calibrate and serve predictors over HTTP",
		Long: `Fit an inductive classifier ("classifier"), a multi-probabilistic classifier
over it ("classifier-mpc"), a transductive classifier ("transductive") and an
inductive regressor ("regressor"), then serve them:

  GET  /healthz
  GET  /v1/models
  POST /v1/models/:name/classify   {"instances": [[...]], "significance": 0.1}
  POST /v1/models/:name/interval   {"instances": [[...]], "confidence": 0.9}
  GET  /v1/snapshots

With --data the classifiers train on the file; --regression-data does the same
for the regressor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := buildContainer(ctx, cmd, &opts)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			models, err := trainModels(ctx, c, opts, regression)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = c.Config.Server.Addr
			}

			gin.SetMode(gin.ReleaseMode)
			server := api.NewServer(models,
				api.WithSnapshots(c.Snapshots),
				api.WithLogger(c.Logger.Named("api")),
				api.WithDefaultSignificance(opts.significance),
				api.WithMaxBatch(c.Config.Server.MaxBatch),
			)
			return server.Start(ctx, addr)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (default CP_ADDR)")
	cmd.Flags().StringVar(&regression, "regression-data", "", "CSV or XLSX file for the regressor (uses --target)")
	return cmd
}

// trainModels fits every served predictor.
func trainModels(ctx context.Context, c *container.Container, opts dataOptions, regressionPath string) (*api.Registry, error) {
	start := time.Now()
	models := api.NewRegistry()

	data, err := classificationData(c, opts)
	if err != nil {
		return nil, err
	}
	icc, err := c.InductiveClassifier(classifierFor(c), data.train.Labels())
	if err != nil {
		return nil, err
	}
	if err := icc.Fit(ctx, data.train, data.cal); err != nil {
		return nil, err
	}
	if err := models.RegisterClassifier("classifier", icc); err != nil {
		return nil, err
	}

	mpc, err := c.MultiProbabilisticClassifier(icc)
	if err != nil {
		return nil, err
	}
	if err := mpc.Calibrate(ctx, data.cal2); err != nil {
		return nil, err
	}
	if err := models.RegisterMultiProbabilistic("classifier-mpc", mpc); err != nil {
		return nil, err
	}

	tcc, err := c.TransductiveClassifier(classifierFor(c), data.train.Labels())
	if err != nil {
		return nil, err
	}
	if err := tcc.Fit(ctx, data.train); err != nil {
		return nil, err
	}
	if err := models.RegisterClassifier("transductive", tcc); err != nil {
		return nil, err
	}

	regOpts := opts
	regOpts.dataPath = regressionPath
	if regressionPath == "" {
		regOpts.target = ""
	}
	reg, err := regressionData(c, regOpts)
	if err != nil {
		return nil, err
	}
	icr, err := c.InductiveRegressor(testkit.NewLeastSquaresRegressor())
	if err != nil {
		return nil, err
	}
	if err := icr.Fit(ctx, reg.train, reg.cal); err != nil {
		return nil, err
	}
	if err := models.RegisterRegressor("regressor", icr); err != nil {
		return nil, err
	}

	c.Logger.Info("trained %d models in %s", len(models.List()), time.Since(start).Round(time.Millisecond))
	return models, nil
}
