package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"relay/internal/adapters/site"
	"relay/internal/adapters/telegram"
	"relay/internal/adapters/vk"
	"relay/internal/modkit"
	"relay/internal/modkit/module"
	"relay/internal/platform/config"
	"relay/internal/platform/logger"

	moddom "relay/internal/services/moderation/domain"
	modmod "relay/internal/services/moderation/module"
	"relay/internal/services/moderation/repo"
	pubdom "relay/internal/services/publish/domain"
	pubmod "relay/internal/services/publish/module"
	watchdom "relay/internal/services/watch/domain"
	watchmod "relay/internal/services/watch/module"
)

func main() {
	root := config.New()
	l := logger.Get()

	st, err := repo.Open(root.MayString("STATE_PATH", "state.json"))
	if err != nil {
		l.Panic().Err(err).Msg("state open failed")
	}

	vkClient := vk.NewClient(vk.Options{
		Token:        root.MustString("VK_TOKEN"),
		UserToken:    root.MayString("VK_USER_TOKEN", ""),
		GroupID:      root.MustInt64("VK_GROUP_ID"),
		APIVersion:   root.MayString("VK_API_VERSION", ""),
		LongpollWait: root.MayInt("VK_LONGPOLL_WAIT", 25),
	})
	tgClient := telegram.NewClient(telegram.Options{
		Token:   root.MustString("TG_BOT_TOKEN"),
		OwnerID: root.MustInt64("OWNER_ID"),
		DryRun:  root.MayBool("DRY_RUN", false),
	})
	siteClient := site.NewClient(site.Options{
		BaseURL:  root.MayString("SITE_BASE_URL", "https://www.econ.msu.ru"),
		NewsPath: root.MayString("SITE_NEWS_PATH", "/alumni/"),
	})

	deps := modkit.Deps{Cfg: root, Log: *l}

	pub := pubmod.New(deps, modkit.WithPorts(pubdom.Ports{
		Messenger: tgClient,
		Wall:      vkClient,
	}))
	module.Register(pub.Name(), pub.Ports())
	publisher := module.MustPortsOf[pubdom.Publisher](pub)

	mod := modmod.New(deps, modkit.WithPorts(moddom.Ports{
		Store:     st,
		Messenger: tgClient,
		Publisher: publisher,
		Feed:      vkClient,
		Site:      siteClient,
	}))
	module.Register(mod.Name(), mod.Ports())
	workflow := module.MustPortsOf[moddom.WorkflowPort](mod)

	w := watchmod.New(deps, modkit.WithPorts(watchdom.Ports{
		Workflow:  workflow,
		Longpoll:  vkClient,
		Updates:   tgClient,
		Cursor:    st,
		Messenger: tgClient,
	}))
	module.Register(w.Name(), w.Ports())
	runner := module.MustPortsOf[watchdom.Runner](w)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := root.MayEnum("MODERATION_MODE", "required", "required", "off")
	dryRun := root.MayBool("DRY_RUN", false)
	hello := fmt.Sprintf("Бот запущен. moderation=%s, dry_run=%v", mode, dryRun)
	if err := tgClient.NotifyOwner(ctx, hello, moddom.OwnerMenu()); err != nil {
		l.Warn().Err(err).Msg("startup notification failed")
	}

	l.Info().Str("moderation", mode).Bool("dry_run", dryRun).Msg("relay bot started")
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Msg("relay bot stopped")
	}
	l.Info().Msg("relay bot shut down")
}
