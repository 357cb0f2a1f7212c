package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/exotech/urchat-api/models"
	"github.com/exotech/urchat-api/services"
	v1 "github.com/exotech/urchat-api/v1"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {

	// Load the .env file
	if err := godotenv.Load(); err != nil {
		fmt.Println("Error loading .env file: ", err)
	}

	// Load the runtime configuration
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalln("Failed to load configuration: ", err)
	}

	//================================================================================
	// Create the database connection
	//================================================================================

	// Get the database driver for the database string
	dbDriver := ParseDatabaseDriver(cfg.DatabaseURL)
	if dbDriver == nil {
		log.Fatalln("Failed to create database driver. Check DB_URL environment variable")
	}

	// Create the database connection
	db, err := gorm.Open(dbDriver, &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		log.Fatalln("failed to connect database: ", err)
	}

	// Migrate the schema
	db.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
		&models.RoomParticipant{},
		&models.RoomInvitation{},
		&models.Message{},
	)

	//================================================================================
	// Setup the WebSockets server
	//================================================================================

	// Get all of the allowed origins
	allowedOrigins := cfg.CorsOrigins

	// Create the server
	socketIoServer := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{
				CheckOrigin: checkOrigin(allowedOrigins),
			},
			&websocket.Transport{
				CheckOrigin: checkOrigin(allowedOrigins),
			},
		},
	})
	go socketIoServer.Serve()
	defer socketIoServer.Close()

	//================================================================================
	// Create all the service instances
	//================================================================================

	tokensService := &services.TokensService{
		SigningSecret: cfg.TokenSecret,
	}
	notificationsService := &services.NotificationsService{
		Gateway: services.LogGateway{},
	}
	messagesService := &services.MessagesService{
		DB:            db,
		Notifications: notificationsService,
		Retention:     cfg.RetentionHorizon(),
	}
	roomsService := &services.RoomsService{
		DB:            db,
		Notifications: notificationsService,
		Messages:      messagesService,
	}
	socketsService := &services.SocketsService{
		Server:   socketIoServer,
		Tokens:   tokensService,
		Rooms:    roomsService,
		Messages: messagesService,
	}
	cleanupService := &services.CleanupService{
		DB:                 db,
		Messages:           messagesService,
		EmptyGroupInterval: cfg.EmptyGroupSweepInterval,
		RetentionInterval:  cfg.RetentionSweepInterval,
	}

	// Do some final update on the services
	// Needed because the broadcaster has a circular relationship with the
	// domain services
	roomsService.Events = socketsService
	messagesService.Events = socketsService
	socketsService.Setup()

	// Start the background sweeps
	cleanupService.Start()
	defer cleanupService.Stop()

	//================================================================================
	// Setup the Gin HTTP router
	//================================================================================

	// Create the Gin router
	r := gin.Default()

	// Configure CORS for the API
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = allowedOrigins
	corsCfg.AllowCredentials = true
	corsCfg.AddAllowHeaders("Accept", "User-Agent", "Authorization")
	r.Use(cors.New(corsCfg))

	// Create the API instance
	api := &v1.Server{
		TokensService:   tokensService,
		RoomsService:    roomsService,
		MessagesService: messagesService,
	}

	// Mount the API routes
	api.Setup(r.Group("v1"))

	// Create a mux to serve both the HTTP and Socket.IO servers
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketIoServer)
	mux.Handle("/", r)

	// Run the server
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Panicln(err)
	}

}

// checkOrigin builds the origin check used by both socket transports
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowedOrigins) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	}
}
