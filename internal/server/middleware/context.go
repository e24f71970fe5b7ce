package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/taxo/pkg/store"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

type App struct {
	DBConn       *pgxpool.Pool
	Store        store.GraphStore
	Queue        *amqp091.Channel
	Key          *keyfunc.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(
	db *pgxpool.Pool,
	graphStore store.GraphStore,
	queue *amqp091.Channel,
	key *keyfunc.Keyfunc,
	masterAPIKey string,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			app := &App{
				DBConn:       db,
				Store:        graphStore,
				Queue:        queue,
				Key:          key,
				MasterAPIKey: masterAPIKey,
			}
			cc := &AppContext{Context: c, App: app}
			return next(cc)
		}
	}
}
