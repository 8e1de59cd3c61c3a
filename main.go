package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"rvnl.in/fittrack/config"
	"rvnl.in/fittrack/handlers"
	"rvnl.in/fittrack/pkg/access"
	"rvnl.in/fittrack/pkg/blobstore"
	"rvnl.in/fittrack/pkg/inference"
	"rvnl.in/fittrack/routes"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {

	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	config.Connect()
	defer config.Log.Sync()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	blob, err := blobstore.FromEnv(config.Log)
	if err != nil {
		log.Fatalf("could not set up blob store: %v", err)
	}
	handlers.Setup(blob, inference.New(config.Log))

	handler := routes.RegisterRoutes(access.NewJWTResolver())
	handlerWithCORS := enableCORS(handler)
	config.Log.Info("server starting", "port", port)
	log.Fatal(http.ListenAndServe(":"+port, handlerWithCORS))
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Required CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		// Handle preflight (OPTIONS)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
