package ucn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/pkg/circuitbreaker"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
	"github.com/malla-ucn/malla-estudiante/pkg/retry"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...func(*ClientConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig()
	cfg.LoginURL = srv.URL + "/login.php"
	cfg.AvanceURL = srv.URL + "/avance.php"
	cfg.MallasURL = srv.URL + "/mallas"
	cfg.RamosURL = srv.URL + "/estudiante"
	cfg.HawaiiAuth = "secret"
	cfg.RateLimit = 1000
	cfg.Burst = 100
	cfg.Retry = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	cfg.BreakerThreshold = 10
	cfg.Logger = logger.Discard()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("password") != "ok" {
			_, _ = w.Write([]byte(`{"error":"credenciales incorrectas"}`))
			return
		}
		assert.Equal(t, "ana@alumnos.ucn.cl", r.URL.Query().Get("email"))
		_, _ = w.Write([]byte(`{"rut":"12345678-k","carreras":[{"codigo":"8606","nombre":"ICCI","catalogo":201610},{"codigo":"","nombre":"x"}]}`))
	}))

	s, err := c.Login(context.Background(), "ana@alumnos.ucn.cl", "ok")
	require.NoError(t, err)
	assert.Equal(t, "12345678-K", s.Rut)
	require.Len(t, s.Careers, 1)
	assert.Equal(t, "201610", s.Careers[0].Catalog)

	_, err = c.Login(context.Background(), "ana@alumnos.ucn.cl", "bad")
	assert.True(t, shared.IsUnauthorized(err))
}

func TestLogin_RutFallsBackToEmail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"carreras":[{"codigo":"8606","nombre":"ICCI","catalogo":"201610"}]}`))
	}))

	s, err := c.Login(context.Background(), "12345678-9@alumnos.ucn.cl", "ok")
	require.NoError(t, err)
	assert.Equal(t, "12345678-9", s.Rut)

	_, err = c.Login(context.Background(), "ana@alumnos.ucn.cl", "ok")
	assert.True(t, shared.IsUnauthorized(err))
}

func TestFetchAttemptHistory(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("rut") {
		case "missing":
			http.Error(w, "Estudiante no encontrado", http.StatusNotFound)
		case "error":
			_, _ = w.Write([]byte(`{"error":"sin datos"}`))
		default:
			assert.Equal(t, "8606", r.URL.Query().Get("codcarrera"))
			_, _ = w.Write([]byte(`[
				{"nrc":"21943","period":"201610","student":"1","course":"DCCB-00107","status":"APROBADO","nota":"5,4"},
				{"nrc":21944,"period":"201610","student":"1","course":"DCCB-00106","status":"REPROBADO","grade":3.1},
				{"nrc":"1","period":"201620","student":"1","course":"","status":"APROBADO"}
			]`))
		}
	}))
	ctx := context.Background()

	records, err := c.FetchAttemptHistory(ctx, "12345678-9", "8606")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "DCCB-00107", records[0].CourseCode)
	assert.Equal(t, "201610", records[0].TermCode)
	require.NotNil(t, records[0].Grade)
	assert.Equal(t, 5.4, *records[0].Grade)
	assert.Equal(t, "21944", records[1].NRC)
	assert.Equal(t, academic.StatusFailed, academic.ClassifyStatus(records[1]))

	records, err = c.FetchAttemptHistory(ctx, "missing", "8606")
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = c.FetchAttemptHistory(ctx, "error", "8606")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchCurriculum(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-HAWAII-AUTH"))
		switch r.URL.RawQuery {
		case "8606-201610":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"codigo": "INF101", "asignatura": "Programación", "creditos": 6, "nivel": 1, "prereq": ""},
				{"codigo": "INF102", "nombre": "Estructuras", "sct": "5", "semestre": 2, "prereq": "INF101, MAT101"},
				{"asignatura": "sin código"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	courses, err := c.FetchCurriculum(context.Background(), academic.CatalogRef{Program: "8606", Catalog: "201610"})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, academic.CurriculumCourse{Code: "INF101", Name: "Programación", Credits: 6, Level: 1}, courses[0])
	assert.Equal(t, "Estructuras", courses[1].Name)
	assert.Equal(t, 5, courses[1].Credits)
	assert.Equal(t, 2, courses[1].Level)
	assert.Equal(t, []string{"INF101", "MAT101"}, courses[1].Prerequisites)

	courses, err = c.FetchCurriculum(context.Background(), academic.CatalogRef{Program: "0000", Catalog: "1"})
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestFetchCurricula_MergesAndSkipsFailures(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.RawQuery {
		case "8606-202410":
			_, _ = w.Write([]byte(`[{"codigo":"INF101","asignatura":"Programación","creditos":0}]`))
		case "8606-201610":
			_, _ = w.Write([]byte(`[{"codigo":"INF101","asignatura":"Programación I","creditos":6},{"codigo":"MAT101","asignatura":"Cálculo","creditos":6}]`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	merged, err := c.FetchCurricula(context.Background(), []academic.CatalogRef{
		{Program: "8606", Catalog: "202410"},
		{Program: "8606", Catalog: "201610"},
		{Program: "8266", Catalog: "202410"},
	})
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Equal(t, "Programación", merged[0].Name)
	assert.Equal(t, 6, merged[0].Credits, "zero credits are backfilled from later catalogs")

	_, err = c.FetchCurricula(context.Background(), []academic.CatalogRef{{Program: "8266", Catalog: "202410"}})
	assert.Error(t, err)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	records, err := c.FetchAttemptHistory(context.Background(), "12345678-9", "8606")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPersistentFailureIsExternalError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.FetchAttemptHistory(context.Background(), "12345678-9", "8606")
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimitedIsUCNRateLimited(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.FetchCurriculum(context.Background(), academic.CatalogRef{Program: "8606", Catalog: "201610"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUCNRateLimited)
	assert.ErrorIs(t, err, shared.ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLogin_InvalidPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>mantenimiento</html>`))
	}))

	_, err := c.Login(context.Background(), "ana@alumnos.ucn.cl", "ok")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUCNInvalidResponse)
	assert.True(t, shared.IsExternalService(err))
}

func TestBreakerUsesConfiguredThreshold(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), func(cfg *ClientConfig) {
		cfg.BreakerThreshold = 2
		cfg.BreakerTimeout = time.Hour
	})

	_, err := c.FetchAttemptHistory(context.Background(), "12345678-9", "8606")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUCNUnavailable)
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())
	// The third attempt is refused by the open breaker.
	assert.Equal(t, int32(2), calls.Load())

	_, err = c.FetchAttemptHistory(context.Background(), "12345678-9", "8606")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchEnrolledCourses(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/estudiante/12345678-9/ramos", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"codigo":"INF201","materia":"Algoritmos","sct":6,"estado":"Inscrito","docente":"Pérez","grupo":"A"},
			{"sigla":"MAT101","nombre":"Cálculo","credits":"6","situacion":"aprobado"},
			{"codigo":"FIS101","asignatura":"Física","status":"fallido"}
		]`))
	}))

	courses, err := c.FetchEnrolledCourses(context.Background(), "12345678-9")
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, academic.EnrolledCourse{
		Code: "INF201", Name: "Algoritmos", Credits: 6, Status: academic.StatusInProgress, Section: "A", Teacher: "Pérez",
	}, courses[0])
	assert.Equal(t, "MAT101", courses[1].Code)
	assert.Equal(t, academic.StatusApproved, courses[1].Status)
	assert.Equal(t, academic.StatusFailed, courses[2].Status)
}

func TestMapEnrolledStatus(t *testing.T) {
	assert.Equal(t, academic.StatusInProgress, MapEnrolledStatus("Semestre actual"))
	assert.Equal(t, academic.StatusApproved, MapEnrolledStatus("PASADO"))
	assert.Equal(t, academic.StatusFailed, MapEnrolledStatus("Reprobada"))
	assert.Equal(t, academic.StatusPending, MapEnrolledStatus(""))
}
