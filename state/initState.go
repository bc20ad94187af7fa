package state

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"
)

type JwtSecret struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

type AppState struct {
	Ctx       context.Context
	Cancel    context.CancelFunc
	DB        *gorm.DB
	Redis     *redis.Client
	Mongo     *mongo.Client // nil when DATABASE.MONGO.URL is unset
	JwtSecret *JwtSecret
}

func InitAppState(ctx context.Context, cancel context.CancelFunc) (*AppState, error) {
	conf := config.Conf

	var (
		db  *gorm.DB
		err error
	)
	switch conf.DATABASE.Driver {
	case "sqlite":
		db, _, err = InitSQLite(conf.DATABASE.SQLite.Path)
	default:
		db, _, err = InitPostgres(conf.DATABASE.Postgres.DSN)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	app := &AppState{Ctx: ctx, Cancel: cancel, DB: db}

	if conf.DATABASE.Mongo.Url != "" {
		mongoClient, err := InitMongo(ctx, conf.DATABASE.Mongo.Url)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Mongo = mongoClient
	} else {
		log.Warn().Msg("MongoDB not configured, conference messages are stored in SQL and dead jobs are not archived")
	}

	rdb, err := InitRedis(ctx, conf.DATABASE.Redis.Addr, conf.DATABASE.Redis.Password, conf.DATABASE.Redis.DB)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Redis = rdb

	jwtSecret, err := InitSecret(conf.AUTH.PublicKeyPath, conf.AUTH.PrivateKeyPath)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.JwtSecret = jwtSecret

	return app, nil
}

// MongoDatabase returns the configured database handle, or nil without Mongo.
func (a *AppState) MongoDatabase() *mongo.Database {
	if a.Mongo == nil {
		return nil
	}
	return a.Mongo.Database(config.Conf.DATABASE.Mongo.Database)
}

func (a *AppState) Close() {
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			log.Info().Msg("Closing SQL database connection...")
			sqlDB.Close()
		}
	}

	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		log.Info().Msg("Closing MongoDB client...")
		defer cancel()
		if err := a.Mongo.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect MongoDB client")
		}
	}

	if a.Redis != nil {
		log.Info().Msg("Closing Redis client...")
		if err := a.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis client")
		}
	}
}
