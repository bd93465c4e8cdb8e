package apihttp

import (
	"image"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"bandscope/internal/analysis/visual"
	"bandscope/internal/detector"
	"bandscope/internal/faults"
	"bandscope/internal/harmony"
	"bandscope/internal/imaging"
	"bandscope/internal/learning"
	"bandscope/internal/logger"
	"bandscope/internal/palette"
	"bandscope/internal/resistance"

	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 500

// Router 暴露 /api 下的检测、学习与查询接口。
type Router struct {
	detector *detector.Service
	learner  *learning.Service
	palette  *palette.Registry

	rate         float64
	burst        int
	maxBody      int64
	historyLimit int
	chart        ChartOptions
}

func NewRouter(cfg ServerConfig) *Router {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Router{
		detector:     cfg.Detector,
		learner:      cfg.Learner,
		palette:      cfg.Palette,
		rate:         cfg.RatePerSecond,
		burst:        cfg.Burst,
		maxBody:      maxBody,
		historyLimit: cfg.HistoryLimit,
		chart:        cfg.Chart,
	}
}

// Register 将路由挂载到给定分组下；写操作与计算密集的接口受限流保护。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/rules", r.handleRules)
	group.GET("/colors", r.handleColors)
	group.GET("/encode", r.handleEncode)
	group.GET("/harmonies", r.handleHarmonies)
	group.GET("/history", r.handleHistory)

	limited := group.Group("", rateLimit(r.rate, r.burst), bodyLimit(r.maxBody))
	limited.POST("/detect-edges", r.handleDetectEdges)
	limited.POST("/scan", r.handleScan)
	limited.POST("/scan/chart", r.handleScanChart)
	limited.POST("/analyze-image", r.handleAnalyzeImage)
	limited.POST("/extract-colors", r.handleExtractColors)
	limited.POST("/learn", r.handleLearn)
	limited.POST("/learn-from-value", r.handleLearnFromValue)
	limited.DELETE("/rules", r.handleClearRules)
	limited.POST("/decode", r.handleDecode)
}

// writeError maps error kinds to status codes: malformed input and rejected
// computations are the caller's problem (400), everything else is ours (500).
func writeError(c *gin.Context, err error) {
	kind := faults.KindOf(err)
	status := http.StatusInternalServerError
	if faults.IsClientError(err) || faults.IsComputation(err) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("[api] %s %s failed ip=%s err=%v", c.Request.Method, c.Request.URL.Path, c.ClientIP(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind.String()})
}

// writeNoResult is the 200 answer for a computation that produced no value.
func writeNoResult(c *gin.Context, err error) {
	c.JSON(http.StatusOK, gin.H{
		"success":        false,
		"resistor_value": nil,
		"error_kind":     faults.KindOf(err).String(),
		"message":        err.Error(),
	})
}

func readBody(c *gin.Context) ([]byte, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, faults.Wrap(faults.KindMalformedInput, err, "read request body")
	}
	return raw, nil
}

type detectResponse struct {
	Success bool `json:"success"`
	*detector.DetectResult
}

func (r *Router) handleDetectEdges(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := parseDetect(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.detector.DetectEdges(c.Request.Context(), detector.DetectRequest{
		Pixels:    p.Pixels,
		Width:     p.Width,
		Height:    p.Height,
		Threshold: p.Threshold,
		Rules:     p.CustomColors,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	logger.Debugf("[api] detect-edges ip=%s trace=%s bands=%d value=%v", c.ClientIP(), res.TraceID, len(res.Bands), res.Decoded())
	c.JSON(http.StatusOK, detectResponse{Success: true, DetectResult: res})
}

func (r *Router) scan(c *gin.Context) (*detector.ScanResult, bool) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	p, err := parseScan(raw)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	aggregation := p.Aggregation
	if q := c.Query("aggregation"); q != "" {
		aggregation = q
	}
	res, err := r.detector.Scan(c.Request.Context(), detector.ScanRequest{
		Slices:      p.Slices,
		Rules:       p.CustomColors,
		Aggregation: aggregation,
		Threshold:   p.Threshold,
	})
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (r *Router) handleScan(c *gin.Context) {
	res, ok := r.scan(c)
	if !ok {
		return
	}
	logger.Debugf("[api] scan ip=%s trace=%s slices=%d consensus=%s", c.ClientIP(), res.TraceID, len(res.Slices), strings.Join(res.DetectedBands, ","))
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleScanChart(c *gin.Context) {
	res, ok := r.scan(c)
	if !ok {
		return
	}
	in := visual.FromScan(res, r.palette.Table())
	if strings.EqualFold(c.Query("format"), "png") {
		if !r.chart.PNGEnabled {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "png rendering is disabled"})
			return
		}
		img, err := visual.RenderScanPNG(c.Request.Context(), in, r.chart.Width, r.chart.Height)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", "inline; filename="+img.Filename)
		c.Data(http.StatusOK, "image/png", img.Bytes)
		return
	}
	html, err := visual.RenderScanHTML(in, r.chart.Width, r.chart.Height)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func formImage(c *gin.Context) (image.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, faults.Wrap(faults.KindMalformedInput, err, "image upload is required")
	}
	return openImage(fh)
}

func openImage(fh *multipart.FileHeader) (image.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, faults.Wrap(faults.KindMalformedInput, err, "open upload")
	}
	defer f.Close()
	img, _, err := imaging.Decode(f)
	return img, err
}

func formInt(c *gin.Context, key string) (int, error) {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, faults.New(faults.KindMalformedInput, "%s must be a non-negative integer", key)
	}
	return n, nil
}

func (r *Router) handleAnalyzeImage(c *gin.Context) {
	img, err := formImage(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var crop [4]int
	for i, key := range []string{"x", "y", "w", "h"} {
		if crop[i], err = formInt(c, key); err != nil {
			writeError(c, err)
			return
		}
	}
	slices, err := formInt(c, "slices")
	if err != nil {
		writeError(c, err)
		return
	}
	req := detector.ImageRequest{Image: img, Slices: slices}
	if crop[2] > 0 && crop[3] > 0 {
		req.Crop = image.Rect(crop[0], crop[1], crop[0]+crop[2], crop[1]+crop[3])
	}
	res, err := r.detector.AnalyzeImage(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleExtractColors(c *gin.Context) {
	img, err := formImage(c)
	if err != nil {
		writeError(c, err)
		return
	}
	count, err := formInt(c, "count")
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.detector.ExtractColors(c.Request.Context(), img, count)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleLearn(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := parseLearn(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	rule, err := r.learner.Learn(c.Request.Context(), p.Detected, p.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rule": rule})
}

func (r *Router) handleLearnFromValue(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := parseLearnFromValue(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	rules, err := r.learner.LearnFromValue(c.Request.Context(), p.Bands, p.Value, p.Tolerance)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "learned": rules, "count": len(rules)})
}

func (r *Router) handleRules(c *gin.Context) {
	rules, err := r.learner.Rules(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (r *Router) handleClearRules(c *gin.Context) {
	if err := r.learner.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (r *Router) handleColors(c *gin.Context) {
	snap := r.palette.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version":   snap.Version,
		"loaded_at": snap.LoadedAt,
		"source":    snap.Source,
		"colors":    palette.FromTable(snap.Table).Colors,
	})
}

func (r *Router) handleDecode(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := parseDecode(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.detector.Decode(p.Bands)
	if err != nil {
		if faults.IsComputation(err) {
			writeNoResult(c, err)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"resistor_value": res.String(),
		"resistance":     res,
	})
}

func (r *Router) handleEncode(c *gin.Context) {
	value := c.Query("value")
	if strings.TrimSpace(value) == "" {
		writeError(c, faults.New(faults.KindMalformedInput, "value is required"))
		return
	}
	names, ohms, err := r.detector.Encode(value, c.Query("tolerance"))
	if err != nil {
		if faults.IsComputation(err) {
			writeNoResult(c, err)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"bands":     names,
		"ohms":      ohms.String(),
		"formatted": resistance.Format(ohms),
	})
}

func (r *Router) handleHarmonies(c *gin.Context) {
	groups, err := harmony.Generate(c.Query("hex"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"harmonies": groups})
}

func (r *Router) handleHistory(c *gin.Context) {
	limit := r.historyLimit
	if q := strings.TrimSpace(c.Query("limit")); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(c, faults.New(faults.KindMalformedInput, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	records, err := r.detector.History(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "limit": limit})
}
