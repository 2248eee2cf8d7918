package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"cardwall/board"
	"cardwall/core"
	"cardwall/handlers/api/boards"
	"cardwall/stores"
)

const demoRoom = "/demo"

func setupRouter(registry *board.Registry, store core.Store) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Origin", "Host", "Connection", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", boards.HandleListRooms(registry))
		r.Post("/boards", boards.HandleCreateBoard())
		r.Get("/boards/{key}", boards.HandleGetBoard(store))
	})

	return r
}

// seedDemoRoom resets the reserved demo room to its sample board on
// every start, the way the hosted instances always have.
func seedDemoRoom(ctx context.Context, store core.Store) {
	logrus.Info("Initializing demo room")
	if err := store.ClearRoom(ctx, demoRoom); err != nil {
		logrus.WithError(err).Error("Failed to clear demo room")
		return
	}

	for _, column := range []string{"Not Started", "Started", "Testing", "Review", "Complete"} {
		if err := store.CreateColumn(ctx, demoRoom, column); err != nil {
			logrus.WithError(err).Error("Failed to seed demo column")
			return
		}
	}

	texts := []string{
		"Hello this is fun",
		"Hello this is a new story.",
		".", ".",
		"Hello this is fun",
		"Hello this is a new card.",
		".", ".",
	}
	colours := []string{"yellow", "white", "blue", "green", "yellow", "yellow", "blue", "green"}
	for i, text := range texts {
		card := core.Card{
			ID:     "card" + strconv.Itoa(i+1),
			Colour: colours[i],
			Rot:    rand.Float64()*10 - 5,
			X:      float64(rand.Intn(600)),
			Y:      float64(rand.Intn(300)),
			Text:   text,
		}
		if err := store.CreateCard(ctx, demoRoom, card.ID, card); err != nil {
			logrus.WithError(err).Error("Failed to seed demo card")
			return
		}
	}
}

func waitForShutdown(srv *socketio.Server) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	srv.Close(nil)
	os.Exit(0)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3000", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		*listenAddress = addr
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	store := stores.GetStore()
	seedDemoRoom(context.Background(), store)

	registry := board.NewRegistry()
	dispatcher := board.NewDispatcher(store, registry, board.NewBroadcaster(registry))

	r := setupRouter(registry, store)
	io := board.SetupSocketIO(dispatcher)
	r.Mount("/socket.io/", io.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(io)
}
