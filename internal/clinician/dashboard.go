package clinician

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"Lifelog/internal/database"
	"Lifelog/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"
)

const DashboardUpdateType = "DASHBOARD_STATS_UPDATE"

type ServerHealth struct {
	CPULoad     string `json:"cpu_load"`
	RAMUsage    string `json:"ram_usage"`
	DBStatus    string `json:"db_status"`
	DBLatencyMs int64  `json:"db_latency_ms"`
}

type DashboardSnapshot struct {
	Stats               database.GetDashboardStatsRow `json:"stats"`
	ServerHealth        ServerHealth                  `json:"server_health"`
	ConnectedDashboards int                           `json:"connected_dashboards"`
	GeneratedAt         string                        `json:"generated_at"`
}

// DashboardUpdate is the websocket payload pushed by the broadcaster.
type DashboardUpdate struct {
	Type string            `json:"type"`
	Data DashboardSnapshot `json:"data"`
}

// collectDashboard runs the stats query, the DB ping and the host metrics
// concurrently. Only a failed stats query is an error; host metrics that
// can't be read are reported as "n/a".
func collectDashboard(ctx context.Context, q database.Querier, cpuInterval time.Duration) (DashboardSnapshot, error) {
	now := time.Now()
	snap := DashboardSnapshot{
		ConnectedDashboards: utility.ClientCount(),
		GeneratedAt:         now.UTC().Format(time.RFC3339),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := q.GetDashboardStats(gctx, utility.DateOf(now))
		if err != nil {
			return fmt.Errorf("dashboard stats: %w", err)
		}
		snap.Stats = stats
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		_, err := q.GetDatabaseStatus(gctx)
		snap.ServerHealth.DBLatencyMs = time.Since(start).Milliseconds()
		snap.ServerHealth.DBStatus = "Healthy"
		if err != nil {
			snap.ServerHealth.DBStatus = "Disconnected"
		}
		return nil
	})

	g.Go(func() error {
		snap.ServerHealth.CPULoad = "n/a"
		if pct, err := cpu.PercentWithContext(gctx, cpuInterval, false); err == nil && len(pct) > 0 {
			snap.ServerHealth.CPULoad = fmt.Sprintf("%.1f%%", pct[0])
		}
		snap.ServerHealth.RAMUsage = "n/a"
		if v, err := mem.VirtualMemoryWithContext(gctx); err == nil {
			snap.ServerHealth.RAMUsage = fmt.Sprintf("%.1f%%", v.UsedPercent)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return DashboardSnapshot{}, err
	}
	return snap, nil
}

// GetDashboardHandler handles GET /clinician/dashboard (first paint; the
// websocket keeps it fresh afterwards).
func GetDashboardHandler(c echo.Context) error {
	snap, err := collectDashboard(c.Request().Context(), queries, 0)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to load dashboard")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load stats"})
	}
	return c.JSON(http.StatusOK, snap)
}

// GetServerHealthHandler handles GET /clinician/health
func GetServerHealthHandler(c echo.Context) error {
	ctx := c.Request().Context()

	v, _ := mem.VirtualMemoryWithContext(ctx)
	cpuPercent, _ := cpu.PercentWithContext(ctx, 0, false)
	d, _ := disk.UsageWithContext(ctx, "/")
	hInfo, _ := host.InfoWithContext(ctx)

	resp := map[string]interface{}{
		"status": "online",
		"runtime": map[string]interface{}{
			"uptime":     time.Since(StartTime).Round(time.Second).String(),
			"start_time": StartTime.Format(time.RFC3339),
		},
	}
	if hInfo != nil {
		resp["host"] = map[string]interface{}{
			"os":       hInfo.OS,
			"platform": hInfo.Platform,
			"arch":     hInfo.KernelArch,
			"hostname": hInfo.Hostname,
		}
	}
	if len(cpuPercent) > 0 {
		resp["cpu"] = map[string]interface{}{"usage_percent": fmt.Sprintf("%.2f%%", cpuPercent[0])}
	}
	if v != nil {
		resp["memory"] = map[string]interface{}{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(v.Total)/1024/1024/1024),
			"used_percent": fmt.Sprintf("%.2f%%", v.UsedPercent),
		}
	}
	if d != nil {
		resp["disk"] = map[string]interface{}{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(d.Total)/1024/1024/1024),
			"used_percent": fmt.Sprintf("%.2f%%", d.UsedPercent),
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// DashboardSocketHandler handles GET /clinician/ws
func DashboardSocketHandler(c echo.Context) error {
	if role, ok := c.Get("role").(string); !ok || role == "" {
		return echo.ErrUnauthorized
	}

	ws, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	id := utility.RegisterClient(ws)
	defer utility.UnregisterClient(id)

	// Nothing is expected from the browser; reading detects the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}

// StartDashboardBroadcaster pushes a snapshot every interval while at least
// one dashboard is connected. It returns when ctx is cancelled.
func StartDashboardBroadcaster(ctx context.Context, q database.Querier, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if utility.ClientCount() == 0 {
			continue
		}

		if err := broadcastSnapshot(ctx, q); err != nil {
			log.Error().Err(err).Msg("Dashboard broadcast failed")
		}
	}
}

func broadcastSnapshot(ctx context.Context, q database.Querier) error {
	snap, err := collectDashboard(ctx, q, time.Second)
	if err != nil {
		return err
	}

	msg, err := json.Marshal(DashboardUpdate{Type: DashboardUpdateType, Data: snap})
	if err != nil {
		return err
	}
	utility.BroadcastToClients(string(msg))
	return nil
}
