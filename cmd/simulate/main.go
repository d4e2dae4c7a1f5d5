package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	ConfirmRatio      float64
	AvailabilityRatio float64
	ReadRatio         float64
	PatientLimit      int
	DoctorLimit       int
	DaysAhead         int
}

type binding struct {
	ID       int64
	DoctorID int64
}

type DataPool struct {
	Patients     []int64
	Bindings     []binding
	mu           sync.RWMutex
	appointments []int64
}

func (dp *DataPool) AddAppointment(id int64) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (int64, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return 0, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Availability OperationMetrics
	Booking      OperationMetrics
	Confirm      OperationMetrics
	ReadByID     OperationMetrics
	ListByDoctor OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	token   string
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	var cfg SimConfig

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive concurrent availability and booking traffic against the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.APIBaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to run")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 10, "concurrent workers")
	cmd.Flags().Float64Var(&cfg.BookingRatio, "booking-ratio", 0.4, "share of booking operations")
	cmd.Flags().Float64Var(&cfg.ConfirmRatio, "confirm-ratio", 0.1, "share of confirm operations")
	cmd.Flags().Float64Var(&cfg.AvailabilityRatio, "availability-ratio", 0.3, "share of availability lookups")
	cmd.Flags().Float64Var(&cfg.ReadRatio, "read-ratio", 0.2, "share of appointment reads")
	cmd.Flags().IntVar(&cfg.PatientLimit, "patients", 4000, "patients to draw from")
	cmd.Flags().IntVar(&cfg.DoctorLimit, "doctors", 20, "doctor specialty bindings to draw from")
	cmd.Flags().IntVar(&cfg.DaysAhead, "days-ahead", 14, "book dates up to this many days ahead")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(simCfg SimConfig) error {
	if err := validateConfig(&simCfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	baseCfg, err := config.Load(config.WithStorage(config.StoragePostgres))
	if err != nil {
		return err
	}
	logger := logging.New(baseCfg.Env, "simulate")

	logger.Info().
		Dur("duration", simCfg.Duration).
		Int("workers", simCfg.Workers).
		Float64("booking", simCfg.BookingRatio).
		Float64("confirm", simCfg.ConfirmRatio).
		Float64("availability", simCfg.AvailabilityRatio).
		Float64("read", simCfg.ReadRatio).
		Msg("simulator starting")

	// Load data from Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, 2, 1)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, simCfg)
	if err != nil {
		return fmt.Errorf("load data pool: %w", err)
	}
	logger.Info().Int("patients", len(dataPool.Patients)).Int("bindings", len(dataPool.Bindings)).Msg("data loaded")

	token, err := auth.NewVerifier(baseCfg.JWTSecret, baseCfg.JWTIssuer).
		Sign(1, []string{auth.RoleAssistant}, simCfg.Duration+time.Hour)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	sim := &Simulator{
		config: simCfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		token:  token,
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()
	return nil
}

func validateConfig(cfg *SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("--workers must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("--days-ahead must be > 0")
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.AvailabilityRatio + cfg.ReadRatio
	if total <= 0 {
		return fmt.Errorf("at least one ratio must be positive")
	}
	cfg.BookingRatio /= total
	cfg.ConfirmRatio /= total
	cfg.AvailabilityRatio /= total
	cfg.ReadRatio /= total
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients WHERE is_active LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Patients, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT ds.id, ds.doctor_id
		FROM doctor_specialty ds
		JOIN doctors d ON d.id = ds.doctor_id
		WHERE d.is_active AND ds.is_primary
		LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load bindings: %w", err)
	}
	dataPool.Bindings, err = pgx.CollectRows(rows, pgx.RowToStructByPos[binding])
	if err != nil {
		return nil, fmt.Errorf("load bindings: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run seed first")
	}
	if len(dataPool.Bindings) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	cfg := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Select operation based on ratios
			r := rng.Float64()
			switch {
			case r < cfg.BookingRatio:
				s.doBooking(ctx, rng)
			case r < cfg.BookingRatio+cfg.ConfirmRatio:
				s.doConfirm(ctx, rng)
			case r < cfg.BookingRatio+cfg.ConfirmRatio+cfg.AvailabilityRatio:
				b := s.randomBinding(rng)
				s.availability(ctx, b.DoctorID, s.randomDate(rng))
			default:
				if rng.Intn(2) == 0 {
					s.doReadByID(ctx, rng)
				} else {
					s.doListByDoctor(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) randomBinding(rng *rand.Rand) binding {
	return s.pool.Bindings[rng.Intn(len(s.pool.Bindings))]
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")
}

// send issues a request and returns the status code, or 0 on transport errors.
func (s *Simulator) send(ctx context.Context, method, path string, body any, out any) int {
	var reader io.Reader
	if body != nil {
		buf, _ := json.Marshal(body)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode
}

func (s *Simulator) availability(ctx context.Context, doctorID int64, date string) []string {
	var resp struct {
		AvailableSlots []string `json:"available_slots"`
	}

	start := time.Now()
	status := s.send(ctx, http.MethodGet, fmt.Sprintf("/available-slots?doctor=%d&date=%s", doctorID, date), nil, &resp)
	s.metrics.Availability.Record(time.Since(start), status == http.StatusOK, false)

	return resp.AvailableSlots
}

// doBooking looks up free slots and books one of them. Concurrent workers
// racing for the same slot show up as conflicts.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	b := s.randomBinding(rng)
	date := s.randomDate(rng)

	free := s.availability(ctx, b.DoctorID, date)
	if len(free) == 0 {
		return
	}

	reqBody := map[string]any{
		"patient":           s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		"doctor_specialist": b.ID,
		"appointment_date":  date,
		"appointment_time":  free[rng.Intn(len(free))],
	}

	var created struct {
		ID int64 `json:"id"`
	}

	start := time.Now()
	status := s.send(ctx, http.MethodPost, "/appointments", reqBody, &created)
	latency := time.Since(start)

	success := status == http.StatusCreated
	if success && created.ID != 0 {
		s.pool.AddAppointment(created.ID)
	}
	conflict := status == http.StatusBadRequest || status == http.StatusConflict

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status := s.send(ctx, http.MethodPost, fmt.Sprintf("/appointments/%d/confirm", apptID), nil, nil)
	s.metrics.Confirm.Record(time.Since(start), status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status := s.send(ctx, http.MethodGet, fmt.Sprintf("/appointments/%d", apptID), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), status == http.StatusOK, false)
}

func (s *Simulator) doListByDoctor(ctx context.Context, rng *rand.Rand) {
	b := s.randomBinding(rng)

	start := time.Now()
	status := s.send(ctx, http.MethodGet, fmt.Sprintf("/appointments?doctor=%d&limit=20", b.DoctorID), nil, nil)
	s.metrics.ListByDoctor.Record(time.Since(start), status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Doctor", &s.metrics.ListByDoctor)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
