package api

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"stratengine/internal/logger"
	"stratengine/internal/repository"
	l3_service "stratengine/internal/service/l3"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type ApiHandler struct {
	Engine                  l3_service.EngineService
	SavedStrategyRepository repository.SavedStrategyRepository
	EvaluationRunRepository repository.EvaluationRunRepository
	JwtSecret               string
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())

	// one logger for the process, attached to every request context so
	// handlers and the engine share it
	log := logger.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.AddToContext(c.Request.Context(), log))
		c.Next()
	})
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to stratengine"})
	})
	router.POST("/evaluate", m.evaluate)
	router.GET("/evaluationRuns/:correlationID", m.getEvaluationRuns)

	authenticated := router.Group("/", m.authMiddleware)
	authenticated.POST("/savedStrategies", m.saveStrategy)
	authenticated.GET("/savedStrategies", m.getSavedStrategies)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	return m.InitializeRouterEngine().Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	logger.FromContext(c.Request.Context()).Errorw("request failed", "error", err.Error())
	c.AbortWithStatusJSON(500, gin.H{
		"error": err.Error(),
	})
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	logger.FromContext(c.Request.Context()).Errorw("request failed", "error", err.Error())
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r responseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (m ApiHandler) logRequestMiddleware(ctx *gin.Context) {
	log := logger.FromContext(ctx.Request.Context())

	w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: ctx.Writer}
	ctx.Writer = w

	body, err := ctx.GetRawData()
	if err != nil {
		log.Warnw("failed to read request body", "error", err.Error())
	}
	ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

	start := time.Now().UTC()
	ctx.Next()

	log.Infow("handled request",
		"method", ctx.Request.Method,
		"route", ctx.Request.URL.Path,
		"ip", ctx.ClientIP(),
		"status", ctx.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
	)
}
