package api

import (
	"fmt"
	"net/http"

	"gocp/domain/conformal"
	"gocp/internal/errors"
	"gocp/internal/pvalue"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/mat"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "models": len(s.models.List())})
}

func (s *Server) handleListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.models.List()})
}

func (s *Server) handleListSnapshots(c *gin.Context) {
	if s.snapshots == nil {
		s.fail(c, errors.NotFound("snapshot storage"))
		return
	}
	snaps, err := s.snapshots.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]SnapshotInfo, len(snaps))
	for i, snap := range snaps {
		out[i] = SnapshotInfo{
			ID:        snap.ID.String(),
			Kind:      string(snap.Kind),
			ModelID:   snap.ModelID.String(),
			CreatedAt: snap.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": out})
}

func (s *Server) handleClassify(c *gin.Context) {
	m, err := s.models.get(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if m.kind() == KindRegressor {
		s.fail(c, errors.InvalidInput(fmt.Sprintf("model %s is a regressor; use /interval", m.name)))
		return
	}

	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.InvalidInput(err.Error()))
		return
	}
	significance := req.Significance
	if significance == 0 {
		significance = s.significance
	}
	if err := pvalue.ValidateSignificance(significance); err != nil {
		s.fail(c, errors.Wrap(err, "invalid significance"))
		return
	}
	x, err := s.matrix(req.Instances)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	resp := ClassifyResponse{Model: m.name, Significance: significance}
	if m.mpc != nil {
		preds, err := m.mpc.PredictBatch(ctx, x)
		if err != nil {
			s.fail(c, err)
			return
		}
		for _, p := range preds {
			out := classification(p.Classification, significance)
			lower, upper := p.Lower, p.Upper
			out.Lower, out.Upper = &lower, &upper
			resp.Classification = append(resp.Classification, out)
		}
	} else {
		preds, err := m.classifier.PredictBatch(ctx, x)
		if err != nil {
			s.fail(c, err)
			return
		}
		for _, p := range preds {
			resp.Classification = append(resp.Classification, classification(p, significance))
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInterval(c *gin.Context) {
	m, err := s.models.get(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if m.regressor == nil {
		s.fail(c, errors.InvalidInput(fmt.Sprintf("model %s is a classifier; use /classify", m.name)))
		return
	}

	var req IntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.InvalidInput(err.Error()))
		return
	}
	confidence := req.Confidence
	if confidence == 0 {
		confidence = 1 - s.significance
	}
	x, err := s.matrix(req.Instances)
	if err != nil {
		s.fail(c, err)
		return
	}

	intervals, err := m.regressor.PredictIntervals(c.Request.Context(), x, confidence)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := IntervalResponse{Model: m.name, Confidence: confidence, Intervals: make([]Interval, len(intervals))}
	for i, in := range intervals {
		resp.Intervals[i] = Interval{Point: in.Point, Lower: in.Lower, Upper: in.Upper}
	}
	c.JSON(http.StatusOK, resp)
}

// matrix packs request rows; every row must have the same width.
func (s *Server) matrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) > s.maxBatch {
		return nil, errors.InvalidInput(fmt.Sprintf("batch of %d rows exceeds the limit of %d", len(rows), s.maxBatch))
	}
	width := len(rows[0])
	if width == 0 {
		return nil, errors.InvalidInput("instances must have at least one attribute")
	}
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, errors.InvalidInput(fmt.Sprintf("instance %d has %d attributes, instance 0 has %d", i, len(row), width))
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), width, data), nil
}

func classification(p conformal.Classification, significance float64) Classification {
	out := Classification{
		PValues:       p.PValues,
		PredictionSet: p.LabelSet(significance),
		Confidence:    p.Confidence(),
		Credibility:   p.Credibility(),
	}
	if out.PredictionSet == nil {
		out.PredictionSet = []float64{}
	}
	if label, ok := p.LabelPointPrediction(); ok {
		out.PointPrediction = &label
	}
	return out
}

// fail maps error codes onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeInvalidInput, errors.CodeDataMismatch:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeNotTrained:
		status = http.StatusConflict
	case errors.CodeUnsupported:
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
