package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/worklane-app/worklane-backend/pkg/actors"
	"github.com/worklane-app/worklane-backend/pkg/auth"
	"github.com/worklane-app/worklane-backend/pkg/communication"
	"github.com/worklane-app/worklane-backend/pkg/environment"
	"github.com/worklane-app/worklane-backend/pkg/locking"
	"github.com/worklane-app/worklane-backend/pkg/logger"
	"github.com/worklane-app/worklane-backend/pkg/tasks"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

func main() {
	var logging logger.Interface = logger.Logger{}
	fmt.Println("Server is starting up...")

	environment.Initialize()

	client, err := mongo.NewClient(options.Client().ApplyURI(environment.Global.DatabaseUrl))
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = client.Connect(ctx)
	if err != nil {
		log.Panic(err)
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		log.Panic(err)
	}

	defer func() {
		err := client.Disconnect(context.Background())
		if err != nil {
			logging.Fatal(err)
		}
	}()

	fmt.Println("Database connected")

	db := client.Database(environment.Global.Database)

	taskCollection := db.Collection("Tasks")
	timeLogCollection := db.Collection("TimeLogs")
	periodLockCollection := db.Collection("PeriodLocks")
	identityCollection := db.Collection("Identities")

	var locker locking.LockerInterface
	var identityCache actors.IdentityCacheInterface

	if environment.Global.Redis != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     environment.Global.Redis,
			Password: environment.Global.RedisPassword,
		})
		locker = locking.NewLockerRedis(redisClient)
		identityCache = actors.NewIdentityCacheRedis(redisClient)
		fmt.Println("Redis connected")
	} else {
		locker = locking.NewLockerMemory()
		identityCache, err = actors.NewIdentityCacheMemory(1000)
		if err != nil {
			log.Panic(err)
		}
	}

	responseManager := communication.ResponseManager{Logger: logging}

	identityRepository := &actors.MongoDBIdentityRepository{DB: identityCollection, Logger: logging}
	resolver := &actors.Resolver{Identities: identityRepository, Cache: identityCache, Logger: logging}

	taskRepository := &tasks.MongoDBTaskRepository{DB: taskCollection, Logger: logging}
	timeLogRepository := &tasks.MongoDBTimeLogRepository{DB: timeLogCollection, Logger: logging}
	periodLockRepository := &tasks.MongoDBPeriodLockRepository{DB: periodLockCollection, Logger: logging}

	engine := tasks.NewTaskEngine(taskRepository, timeLogRepository, periodLockRepository, locker, logging)

	taskHandler := tasks.Handler{Engine: engine, Logger: logging, ResponseManager: &responseManager}
	timeLogHandler := tasks.TimeLogHandler{Engine: engine, Logger: logging, ResponseManager: &responseManager}
	periodLockHandler := tasks.PeriodLockHandler{Engine: engine, Logger: logging, ResponseManager: &responseManager}

	authMiddleware := auth.AuthenticationMiddleware{
		ResponseManager: &responseManager,
		Resolver:        resolver,
		Secret:          environment.Global.Secret,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)

		_, err := fmt.Fprint(writer, "Welcome to the API! ✔")
		if err != nil {
			log.Printf("Error: %v\n", err)
		}
	})

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(authMiddleware.Middleware)

	api.HandleFunc("/tasks", taskHandler.TaskAdd).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}", taskHandler.TaskGet).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}", taskHandler.TaskUpdate).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{taskID}", taskHandler.TaskDelete).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{taskID}/subtasks", taskHandler.SubtaskAdd).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/subtasks/{subtaskID}", taskHandler.SubtaskUpdate).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{taskID}/subtasks/{subtaskID}", taskHandler.SubtaskDelete).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{taskID}/subtasks/{subtaskID}/reorder", taskHandler.SubtaskReorder).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{taskID}/timelogs", timeLogHandler.TimeLogAdd).Methods(http.MethodPost)
	api.HandleFunc("/timelogs/{timeLogID}", timeLogHandler.TimeLogUpdate).Methods(http.MethodPut)
	api.HandleFunc("/timelogs/{timeLogID}", timeLogHandler.TimeLogDelete).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{projectID}/period-locks", periodLockHandler.PeriodLockList).Methods(http.MethodGet)
	api.HandleFunc("/projects/{projectID}/period-locks", periodLockHandler.PeriodLockAdd).Methods(http.MethodPost)
	api.HandleFunc("/projects/{projectID}/period-locks/{lockID}", periodLockHandler.PeriodLockToggle).Methods(http.MethodPatch)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			w.Header().Add("Content-Type", "application/json")
			w.Header().Add("X-Request-Id", requestID)
			if environment.Global.Cors != "" {
				w.Header().Add("Access-Control-Allow-Origin", environment.Global.Cors)
			}
			logging.Info(r.Method + " " + r.URL.Path + " " + requestID)
			next.ServeHTTP(w, r)
		})
	})

	port := environment.Global.Port
	if port == "" {
		port = "80"
	}

	server := &http.Server{Addr: ":" + port, Handler: r}

	serverCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(serverCtx)

	group.Go(func() error {
		fmt.Println("Listening on :" + port)
		return server.ListenAndServe()
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	if err != nil && err != http.ErrServerClosed {
		logging.Fatal(err)
	}
}
