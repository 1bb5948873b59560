package bootstrap

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/vectorhub/backend-go/internal/activity"
	"github.com/vectorhub/backend-go/internal/config"
	"github.com/vectorhub/backend-go/internal/database"
	"github.com/vectorhub/backend-go/internal/di"
	"github.com/vectorhub/backend-go/internal/logger"
	"github.com/vectorhub/backend-go/internal/registry"
	"github.com/vectorhub/backend-go/internal/vectorindex"
	"github.com/vectorhub/backend-go/internal/vectorops"
	"gorm.io/gorm"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	container    *dig.Container
	cleanupTasks []func() error

	Registry *registry.Registry
	Vectors  *vectorops.Service
	Recorder *activity.Recorder
	Index    vectorindex.VectorIndex
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger, database and vector store connections
// required by the Beego application. Connections are acquired once here;
// failure to reach the database or the vector store is fatal at startup.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	app := &App{container: container}

	err := container.Invoke(func(
		reg *registry.Registry,
		vectors *vectorops.Service,
		rec *activity.Recorder,
		index vectorindex.VectorIndex,
		db *gorm.DB,
	) {
		app.Registry = reg
		app.Vectors = vectors
		app.Recorder = rec
		app.Index = index
		app.cleanupTasks = append(app.cleanupTasks, index.Close)
		if db != nil {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return database.Close(db)
			})
		}
	})
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger and activity log buffers.
	if a.Recorder != nil {
		a.Recorder.Sync()
	}
	logger.Sync()
}
