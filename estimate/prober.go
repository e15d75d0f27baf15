package estimate

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	nhttp "github.com/chaos-io/autofocus/util/http"
	"github.com/chaos-io/autofocus/utils"
)

const healthPath = "/health"

// Prober 周期性探活远端深度服务，把结果写进 Remote 的就绪位。
// 模型不可用属于启动期/运维问题，不在请求路径里重试。
type Prober struct {
	target   *Remote
	cli      nhttp.IClient
	interval time.Duration
	cron     *cron.Cron
}

func NewProber(target *Remote, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Prober{
		target:   target,
		cli:      nhttp.NewHTTPClient(),
		interval: interval,
	}
}

// Start 先同步探一次（启动即知道模型在不在），之后按间隔跑。
func (p *Prober) Start() error {
	p.Probe()

	p.cron = cron.New()
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.interval), p.Probe); err != nil {
		return fmt.Errorf("schedule probe: %w", err)
	}
	p.cron.Start()
	return nil
}

func (p *Prober) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

func (p *Prober) Probe() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: p.target.baseURL + healthPath,
		Method:     "GET",
	})
	p.target.markReady(err == nil)

	if err != nil && utils.Logger != nil {
		utils.Logger.Warn("depth service probe failed", zap.String("base_url", p.target.baseURL), zap.Error(err))
	}
}
