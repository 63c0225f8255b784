// Package dashboard serves a small live monitoring page for the prediction
// service. It streams a rolling summary of recent decisions over WebSocket so
// an operator can watch approval rates and risk mix without scraping metrics.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"loanrisk-api/internal/storage"
)

// summaryWindow is how many recent decisions feed the rolling summary.
const summaryWindow = 100

// Snapshot is one rolling summary pushed to connected clients.
type Snapshot struct {
	Timestamp       time.Time                  `json:"timestamp"`
	WindowSize      int                        `json:"window_size"`
	TotalDecisions  int                        `json:"total_decisions"`
	Approved        int                        `json:"approved"`
	Rejected        int                        `json:"rejected"`
	ApprovalRate    float64                    `json:"approval_rate"`
	HighRiskCount   int                        `json:"high_risk_count"`
	FallbackCount   int                        `json:"fallback_count"`
	AvgProbability  float64                    `json:"avg_probability"`
	RecentDecisions []storage.PredictionRecord `json:"recent_decisions"`
}

// Dashboard streams decision summaries to WebSocket clients.
type Dashboard struct {
	store     *storage.Store
	server    *http.Server
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
	stopCh    chan struct{}

	mu        sync.Mutex
	isRunning bool
}

// New builds a dashboard reading from the audit store.
func New(store *storage.Store, port int) *Dashboard {
	d := &Dashboard{
		store:    store,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]bool),
		stopCh:   make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", d.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", d.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/ws", d.handleWebSocket).Methods(http.MethodGet)

	d.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return d
}

// Start runs the dashboard server and the broadcast loop.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dashboard already running")
	}

	go d.broadcastLoop()

	go func() {
		log.Info().Str("addr", d.server.Addr).Msg("starting dashboard server")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dashboard server failed")
		}
	}()

	d.isRunning = true
	return nil
}

// Stop closes client connections and shuts the server down.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return nil
	}

	close(d.stopCh)

	d.clientsMu.Lock()
	for client := range d.clients {
		client.Close()
	}
	d.clients = make(map[*websocket.Conn]bool)
	d.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		return err
	}

	d.isRunning = false
	return nil
}

func (d *Dashboard) broadcastLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.broadcast(d.collect())
		case <-d.stopCh:
			return
		}
	}
}

// collect aggregates the most recent decisions into one snapshot.
func (d *Dashboard) collect() Snapshot {
	snap := Snapshot{
		Timestamp:  time.Now().UTC(),
		WindowSize: summaryWindow,
	}

	records, err := d.store.GetRecent(summaryWindow)
	if err != nil {
		log.Error().Err(err).Msg("failed to read recent decisions")
		return snap
	}

	var probSum float64
	for _, rec := range records {
		snap.TotalDecisions++
		probSum += rec.DefaultProbability

		if rec.Decision == "Approve" {
			snap.Approved++
		} else {
			snap.Rejected++
		}
		if rec.RiskLevel == "High" || rec.RiskLevel == "Very High" {
			snap.HighRiskCount++
		}
		if rec.Fallback {
			snap.FallbackCount++
		}
	}

	if snap.TotalDecisions > 0 {
		snap.ApprovalRate = float64(snap.Approved) / float64(snap.TotalDecisions)
		snap.AvgProbability = probSum / float64(snap.TotalDecisions)
	}

	if len(records) > 10 {
		records = records[:10]
	}
	snap.RecentDecisions = records

	return snap
}

func (d *Dashboard) broadcast(snap Snapshot) {
	d.clientsMu.RLock()
	defer d.clientsMu.RUnlock()

	if len(d.clients) == 0 {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot")
		return
	}

	for client := range d.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			client.Close()
			delete(d.clients, client)
		}
	}
}

func (d *Dashboard) handleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d.collect())
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	d.clientsMu.Lock()
	d.clients[conn] = true
	d.clientsMu.Unlock()

	if data, err := json.Marshal(d.collect()); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	d.clientsMu.Lock()
	delete(d.clients, conn)
	d.clientsMu.Unlock()
}

func (d *Dashboard) handlePage(w http.ResponseWriter, r *http.Request) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <title>Loan Risk - Decision Monitor</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1100px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2em; text-align: center; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(250px, 1fr)); gap: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .metric { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #eee; }
        .metric:last-child { border-bottom: none; }
        .metric-label { font-weight: 500; color: #666; }
        .metric-value { font-weight: bold; color: #333; }
        .approve { color: #28a745; }
        .reject { color: #dc3545; }
        .decisions-table { width: 100%; border-collapse: collapse; margin-top: 10px; }
        .decisions-table th, .decisions-table td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; font-size: 0.9em; }
        .decisions-table th { background-color: #f8f9fa; font-weight: 600; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Loan Default Risk - Decision Monitor</h1>
        </div>

        <div class="grid">
            <div class="card">
                <h3>Decisions</h3>
                <div class="metric">
                    <span class="metric-label">Window</span>
                    <span class="metric-value" id="total-decisions">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Approved</span>
                    <span class="metric-value approve" id="approved">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Rejected</span>
                    <span class="metric-value reject" id="rejected">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Approval Rate</span>
                    <span class="metric-value" id="approval-rate">--</span>
                </div>
            </div>

            <div class="card">
                <h3>Risk</h3>
                <div class="metric">
                    <span class="metric-label">High Risk</span>
                    <span class="metric-value" id="high-risk">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Avg Default Probability</span>
                    <span class="metric-value" id="avg-probability">--</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Fallback Scored</span>
                    <span class="metric-value" id="fallback-count">0</span>
                </div>
                <div class="metric">
                    <span class="metric-label">Last Updated</span>
                    <span class="metric-value" id="last-update">--</span>
                </div>
            </div>
        </div>

        <div class="card" style="margin-top: 20px;">
            <h3>Recent Decisions</h3>
            <table class="decisions-table">
                <thead>
                    <tr>
                        <th>Time</th>
                        <th>Purpose</th>
                        <th>Amount</th>
                        <th>P(default)</th>
                        <th>Risk</th>
                        <th>Decision</th>
                    </tr>
                </thead>
                <tbody id="decisions-body">
                    <tr><td colspan="6" style="text-align: center; color: #666;">No decisions yet</td></tr>
                </tbody>
            </table>
        </div>
    </div>

    <script>
        const ws = new WebSocket('ws://' + location.host + '/ws');

        ws.onmessage = function(event) {
            update(JSON.parse(event.data));
        };

        ws.onclose = function() {
            setTimeout(() => location.reload(), 5000);
        };

        function update(data) {
            document.getElementById('total-decisions').textContent = data.total_decisions;
            document.getElementById('approved').textContent = data.approved;
            document.getElementById('rejected').textContent = data.rejected;
            document.getElementById('approval-rate').textContent = (data.approval_rate * 100).toFixed(1) + '%';
            document.getElementById('high-risk').textContent = data.high_risk_count;
            document.getElementById('avg-probability').textContent = (data.avg_probability * 100).toFixed(2) + '%';
            document.getElementById('fallback-count').textContent = data.fallback_count;
            document.getElementById('last-update').textContent = new Date(data.timestamp).toLocaleTimeString();

            const tbody = document.getElementById('decisions-body');
            tbody.innerHTML = '';
            if (!data.recent_decisions || data.recent_decisions.length === 0) {
                tbody.innerHTML = '<tr><td colspan="6" style="text-align: center; color: #666;">No decisions yet</td></tr>';
                return;
            }
            for (const rec of data.recent_decisions) {
                const row = document.createElement('tr');
                row.innerHTML = ` + "`" + `
                    <td>${new Date(rec.timestamp).toLocaleTimeString()}</td>
                    <td>${rec.purpose}</td>
                    <td>$${rec.loan_amount.toFixed(0)}</td>
                    <td>${(rec.default_probability * 100).toFixed(2)}%</td>
                    <td>${rec.risk_level}</td>
                    <td class="${rec.decision === 'Approve' ? 'approve' : 'reject'}">${rec.decision}</td>
                ` + "`" + `;
                tbody.appendChild(row);
            }
        }
    </script>
</body>
</html>
	`

	t, err := template.New("dashboard").Parse(tmpl)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	t.Execute(w, nil)
}
