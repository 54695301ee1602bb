package surveyforge

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // enable postgres dialect
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // enable postgres migrations
	_ "github.com/golang-migrate/migrate/v4/source/file"       // enable file migration source
	_ "github.com/lib/pq"                                      // enable postgres driver
	"github.com/sirupsen/logrus"
	"github.com/surveyforge/surveyforge/config"
)

// Application is Service Main Object
type Application struct {
	container *Container
}

// NewApplication constructor
func NewApplication(cfg config.Config) *Application {
	return &Application{
		container: NewContainer(cfg),
	}
}

func (s *Application) Migrate() error {
	_, err := s.container.DB()
	if err != nil {
		return err
	}

	err = applyMigrations(s.container.Config().Migrations)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (s *Application) ServePublic(quit chan bool) error {
	httpServer, err := s.container.PublicHTTPServer()
	if err != nil {
		return err
	}

	go func() {
		<-quit

		if err := httpServer.Shutdown(context.Background()); err != nil {
			logrus.Error(err.Error())
		}
	}()

	logrus.Println("public HTTP listener started")

	err = httpServer.ListenAndServe()
	if err != nil {
		// cannot panic, because this probably is an intentional close
		logrus.Printf("Httpserver: ListenAndServe() error: %s", err)
	}

	logrus.Println("public HTTP listener stopped")

	return nil
}

func (s *Application) ServePrivate(quit chan bool) error {
	httpServer, err := s.container.PrivateHTTPServer()
	if err != nil {
		return err
	}

	go func() {
		<-quit

		if err := httpServer.Shutdown(context.Background()); err != nil {
			logrus.Error(err.Error())
		}
	}()

	logrus.Println("private HTTP listener started")

	err = httpServer.ListenAndServe()
	if err != nil {
		// cannot panic, because this probably is an intentional close
		logrus.Printf("Httpserver: ListenAndServe() error: %s", err)
	}

	logrus.Println("private HTTP listener stopped")

	return nil
}

// Close Destructor
func (s *Application) Close() error {
	logrus.Println("Closing service")

	err := s.container.Close()
	if err != nil {
		return err
	}

	logrus.Println("Service closed")

	return nil
}

func applyMigrations(config config.MigrationsConfig) error {
	logrus.Info("Apply migrations")

	dir := config.Dir
	if dir == "" {
		ex, err := os.Executable()
		if err != nil {
			return err
		}

		dir = filepath.Dir(ex) + "/migrations"
	}

	m, err := migrate.New("file://"+dir, config.DSN)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil {
		return err
	}

	logrus.Info("Migrations applied")

	return nil
}
