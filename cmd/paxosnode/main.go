// Command paxosnode runs a single Paxos participant as an HTTP
// server: one uid, one Proposer+Acceptor+Learner, wired over
// httptransport. Adapted from the teacher's main.go init()/main()
// pair (load config.yaml, prepare storage, register HTTP routes,
// serve) collapsed into a single process — the teacher's separate
// node_controller.go subprocess supervisor (and its
// backdoorServiceHandler, which would fetch an arbitrary
// caller-supplied URL) has no equivalent here; see the repository's
// DESIGN.md for why.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/esaraci/paxoscore/paxos"
	"github.com/esaraci/paxoscore/retry"
	"github.com/esaraci/paxoscore/storage"
	"github.com/esaraci/paxoscore/storage/memory"
	"github.com/esaraci/paxoscore/storage/redisstore"
	"github.com/esaraci/paxoscore/storage/sqlite"
	"github.com/esaraci/paxoscore/transport/httptransport"
)

func main() {
	configPath := "./config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := paxos.LoadConfigFile(configPath)
	if err != nil {
		log.Fatalf("[paxosnode] %v", err)
	}

	store, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("[paxosnode] %v", err)
	}

	tr := httptransport.New[string](2 * time.Second)
	for _, addr := range cfg.Nodes {
		tr.AddPeer(addr, addr)
	}

	getFirstValue := func(uid string) string { return fmt.Sprintf("paxoscore@%s", uid) }
	stringify := func(v string) string { return v }
	declare := func(v string) error {
		log.Printf("[paxosnode] final value declared: %s", v)
		return nil
	}

	node := paxos.NewNode[string](cfg, tr, store, retry.ExponentialBackoff{}, getFirstValue, stringify, declare)

	if err := node.SetupBindings(context.Background()); err != nil {
		log.Fatalf("[paxosnode] %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/paxos/message", tr.Handler())
	mux.HandleFunc("/paxos/nudge", func(w http.ResponseWriter, r *http.Request) {
		node.Nudge()
		w.WriteHeader(http.StatusAccepted)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("[paxosnode] serving uid %s on %s", cfg.UID, addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func openStorage(cfg paxos.Config) (storage.Storage[string], error) {
	switch cfg.StorageBackend {
	case "sqlite":
		return sqlite.Open[string](cfg.StoragePath)
	case "redis":
		return redisstore.Open[string](cfg.RedisAddr, "", 0)
	default:
		return memory.New[string](), nil
	}
}
