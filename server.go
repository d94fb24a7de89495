package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/models"
	"github.com/mkstore/procurement_backend/operations"
	"github.com/mkstore/procurement_backend/productdata"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("procurement-backend")

func main() {
	godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	if os.Getenv("GO_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": config.GetDB() != nil})
	})

	// Reconciliation run surface: manual trigger, history, scheduled push.
	router.POST("/operations/runs", operations.TriggerRunHandler())
	router.GET("/operations/runs", operations.RunHistoryHandler())
	router.GET("/operations/runs/:id", operations.RunDetailHandler())
	router.POST("/operations/pubsub", operations.PubSubPushHandler())

	// Storefront product data. The CMS client is optional so the run surface
	// still comes up when the content store isn't configured.
	if cmsClient, err := cms.NewClientFromEnv(); err == nil {
		router.GET("/products/:productId", productdata.ProductDataHandler(cmsClient))
	} else {
		log.Printf("product data endpoint disabled: %v", err)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Connect AFTER the listener is up (Cloud Run wants a fast bind).
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
