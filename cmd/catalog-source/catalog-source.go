package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gamedex/catalog-cache/internal/pkg/infrastructure/router"
	"github.com/gamedex/catalog-cache/pkg/catalog"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

const (
	appName string = "catalog-source"
)

// catalog-source is a small stand in for the real content API. It serves
// the paginated page payload the cache consumes, straight from Postgres,
// so that the cache can be exercised end to end without the upstream.
func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	port := env.GetVariableOrDefault(ctx, "SERVICE_PORT", "8090")

	p, err := connect(ctx, LoadConfiguration(ctx))
	if err != nil {
		log.Error("failed to connect to database", "err", err.Error())
		os.Exit(1)
	}
	defer p.Close()

	r := router.New(appName)
	r.Get("/api/{collection}", NewQueryCollectionHandler(p))
	r.Get("/api/{collection}/{entityId}", NewRetrieveFromCollectionHandler(p))

	log.Info("starting to listen for connections", "port", port)

	err = http.ListenAndServe(":"+port, r)
	if err != nil {
		log.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "gamedex"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		return nil, err
	}

	return conn, err
}

func NewQueryCollectionHandler(p *pgxpool.Pool) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		collection := chi.URLParam(r, "collection")

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}

		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		if pageSize < 1 {
			pageSize = 20
		}

		count, err := countRecords(ctx, p, collection)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		records, err := getRecords(ctx, p, collection, pageSize, (page-1)*pageSize)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var next, previous *int
		if page*pageSize < count {
			next = catalog.PageNumber(page + 1)
		}
		if page > 1 {
			previous = catalog.PageNumber(page - 1)
		}

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		body, err := json.Marshal(catalog.NewPage(records, count, next, previous))
		if err == nil {
			w.Write(body)
		}
	})
}

func NewRetrieveFromCollectionHandler(p *pgxpool.Pool) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		collection := chi.URLParam(r, "collection")
		entityID := chi.URLParam(r, "entityId")

		record, err := getRecord(ctx, p, collection, entityID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		body, err := json.Marshal(record)
		if err == nil {
			w.Write(body)
		}
	})
}

func countRecords(ctx context.Context, p *pgxpool.Pool, collection string) (int, error) {
	sql := `SELECT count(*) FROM records WHERE collection=$1;`

	var count int
	err := p.QueryRow(ctx, sql, collection).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func getRecords(ctx context.Context, p *pgxpool.Pool, collection string, limit, offset int) ([]types.Record, error) {
	sql := `SELECT payload FROM records WHERE collection=$1 ORDER BY id LIMIT $2 OFFSET $3;`

	rows, err := p.Query(ctx, sql, collection, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]types.Record, 0, limit)

	for rows.Next() {
		var payload []byte
		err := rows.Scan(&payload)
		if err != nil {
			return nil, err
		}

		record := types.Record{}
		err = json.Unmarshal(payload, &record)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func getRecord(ctx context.Context, p *pgxpool.Pool, collection, entityID string) (types.Record, error) {
	sql := `SELECT payload FROM records WHERE collection=$1 AND id=$2;`

	var payload []byte
	err := p.QueryRow(ctx, sql, collection, entityID).Scan(&payload)
	if err != nil {
		return nil, err
	}

	record := types.Record{}
	err = json.Unmarshal(payload, &record)
	if err != nil {
		return nil, err
	}

	return record, nil
}
