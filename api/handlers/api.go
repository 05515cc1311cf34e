package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/api"
	"github.com/sagip-cad/emergency-dispatch-api/api/scheduler"
	"github.com/sagip-cad/emergency-dispatch-api/config"
	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/dispatch"
	"github.com/sagip-cad/emergency-dispatch-api/logging"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	dbHelper databases.DatabaseHelper
	feed     *dispatch.Feed
	feedStop context.CancelFunc
	jobs     *scheduler.Scheduler
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	api.SetupAuth(a.Config.JWTSecret)

	r := mux.NewRouter()

	// the route table can be built before the database is connected
	var client databases.ClientHelper
	if a.dbHelper != nil {
		client = a.dbHelper.Client()
	}
	edb := databases.NewEmergencyDatabase(a.dbHelper)
	tdb := databases.NewTeamDatabase(a.dbHelper)
	cdb := databases.NewConversationDatabase(a.dbHelper)
	mdb := databases.NewMessageDatabase(a.dbHelper)
	udb := databases.NewUserDatabase(a.dbHelper)

	provisioner := &dispatch.ConversationProvisioner{Client: client, CDB: cdb, MDB: mdb}
	coordinator := &dispatch.AssignmentCoordinator{Client: client, EDB: edb, TDB: tdb, Provisioner: provisioner}
	engine := &dispatch.TransitionEngine{Client: client, EDB: edb, TDB: tdb, CDB: cdb}

	logger := logging.New()
	cache := dispatch.NewIdentityCache(udb, dispatch.DefaultIdentityTTL)
	a.feed = dispatch.NewFeed(edb, logger)
	publisher := &dispatch.Publisher{Feed: a.feed, EDB: edb, Cache: cache, Log: logger}

	a.jobs = scheduler.New(edb, cache)

	e := Emergency{DB: edb, UDB: udb, Coordinator: coordinator, Engine: engine}
	t := Team{DB: tdb}
	c := Conversation{DB: cdb, MDB: mdb, Provisioner: provisioner}
	u := User{DB: udb}
	live := Live{Publisher: publisher}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/emergency", api.Middleware(http.HandlerFunc(e.CreateEmergencyHandler))).Methods("POST")
	apiCreate.Handle("/emergencies", api.Middleware(http.HandlerFunc(e.EmergenciesHandler))).Methods("GET")
	apiCreate.Handle("/emergency/{emergency_id}", api.Middleware(http.HandlerFunc(e.EmergencyByIDHandler))).Methods("GET")
	apiCreate.Handle("/emergency/{emergency_id}/assign", api.Middleware(http.HandlerFunc(e.AssignTeamHandler))).Methods("POST")
	apiCreate.Handle("/emergency/{emergency_id}/status", api.Middleware(http.HandlerFunc(e.UpdateStatusHandler))).Methods("PUT")

	apiCreate.Handle("/teams/available", api.Middleware(http.HandlerFunc(t.AvailableTeamsHandler))).Methods("GET")

	apiCreate.Handle("/conversation/{conversation_id}", api.Middleware(http.HandlerFunc(c.ConversationByIDHandler))).Methods("GET")
	apiCreate.Handle("/conversation/{conversation_id}/messages", api.Middleware(http.HandlerFunc(c.ConversationMessagesHandler))).Methods("GET")
	apiCreate.Handle("/conversation/{conversation_id}/messages", api.Middleware(http.HandlerFunc(c.SendMessageHandler))).Methods("POST")
	apiCreate.Handle("/conversations/member/{user_id}", api.Middleware(http.HandlerFunc(c.MemberConversationsHandler))).Methods("GET")

	apiCreate.Handle("/users", api.Middleware(http.HandlerFunc(u.FetchUsersByIdsHandler))).Methods("POST")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	r.HandleFunc("/ws/emergencies", live.SubscribeHandler)

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("emergency-dispatch-api has connected to the database")

	// initialize api router
	a.initializeRoutes()

	// start the change feed and the background jobs
	feedCtx, cancel := context.WithCancel(context.Background())
	a.feedStop = cancel
	go a.feed.Run(feedCtx)
	a.jobs.Start()

	return nil

}

// Shutdown stops the change feed and the background jobs
func (a *App) Shutdown() {
	if a.feedStop != nil {
		a.feedStop()
	}
	if a.jobs != nil {
		a.jobs.Stop()
	}
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
