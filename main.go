package main

import (
	"context"
	"errors"
	"flag"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/adprovider/fakeprovider"
	"github.com/monsterutils/adrefresh/adprovider/ortbprovider"
	"github.com/monsterutils/adrefresh/config"
	"github.com/monsterutils/adrefresh/endpoints"
	"github.com/monsterutils/adrefresh/host"
	"github.com/monsterutils/adrefresh/initializer"
	"github.com/monsterutils/adrefresh/metrics"
	metricsconfig "github.com/monsterutils/adrefresh/metrics/config"
	"github.com/monsterutils/adrefresh/nativeui"
	"github.com/monsterutils/adrefresh/readiness"
	"github.com/monsterutils/adrefresh/router"
	"github.com/monsterutils/adrefresh/server"
	"github.com/monsterutils/adrefresh/storelink"
	"github.com/monsterutils/adrefresh/view"
	"github.com/monsterutils/adrefresh/view/headless"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// Rev holds binary revision string
// Set manually at build time using:
//
//	go build -ldflags "-X main.Rev=`git rev-parse --short HEAD`"
var Rev string

// Version holds the release tag the binary was built from.
var Version string

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	err = serve(Rev, cfg)
	if err != nil {
		glog.Exitf("adrefresh failed: %v", err)
	}
}

const configFileName = "adrefresh"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(revision string, cfg *config.Configuration) error {
	metricsEngine := metricsconfig.NewMetricsEngine(cfg, cfg.SlotNames())

	opener, err := storelink.NewOpener(cfg.Store.Opener)
	if err != nil {
		return err
	}
	provider := newProvider(cfg.Provider, opener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providerInit := initializer.New(provider, readiness.Default, metricsEngine, cfg.Initializer)
	providerInit.Start(ctx)

	loop := host.NewLoop(clock.New())
	storeClick := storelink.Handler(storelink.NewBuilder(cfg.Store.URLTemplate, cfg.Store.DeveloperID), opener)
	components := newComponents(ctx, cfg, loop, provider, metricsEngine, storeClick)
	loop.Post(func() {
		for _, c := range components {
			c.Start()
		}
	})

	slots := make([]endpoints.Slot, 0, len(components))
	for _, c := range components {
		slots = append(slots, c)
	}
	r := router.New(router.Deps{
		Loop:       loop,
		Slots:      endpoints.NewSlots(slots...),
		Readiness:  readiness.Default,
		InitStatus: providerInit,
		Version:    Version,
		Revision:   revision,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx, cfg.FrameInterval())
	})
	g.Go(func() error {
		// The loop goes down with the servers.
		defer cancel()
		return server.Listen(gctx, cfg, router.SupportCORS(r), metricsEngine)
	})
	err = g.Wait()

	// The loop has stopped, so the components can be closed from here.
	for _, c := range components {
		c.Close()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newProvider(cfg config.Provider, opener storelink.Opener) adprovider.Provider {
	if cfg.Type == config.ProviderORTB {
		glog.Infof("Loading native ads from %s", cfg.Endpoint)
		return ortbprovider.New(cfg, opener)
	}

	glog.Warning("Using the fake ad provider; every request is filled with a synthetic ad")
	fake := fakeprovider.New()
	fake.AutoFill = true
	if len(cfg.Adapters) > 0 {
		fake.Adapters = cfg.Adapters
	}
	return fake
}

func newComponents(ctx context.Context, cfg *config.Configuration, loop *host.Loop, provider adprovider.Provider, metricsEngine metrics.MetricsEngine, storeClick func()) []*nativeui.Component {
	names := cfg.SlotNames()
	components := make([]*nativeui.Component, 0, len(names))
	for _, name := range names {
		slot := cfg.Slots[name]
		components = append(components, nativeui.New(nativeui.Config{
			Name:             name,
			AdUnitID:         slot.AdUnitID,
			ReloadInterval:   slot.ReloadInterval(),
			Placeholders:     slot.PlaceholderImages,
			ReadinessTimeout: cfg.ReadinessTimeout(),
		}, newWidgets(name, slot), nativeui.Deps{
			Loop:       loop,
			Provider:   provider,
			Readiness:  readiness.Default,
			Metrics:    metricsEngine,
			StoreClick: storeClick,
			Context:    ctx,
		}))
	}
	return components
}

// newWidgets builds headless widgets for a slot. Widgets left out of the slot's
// widget list stay nil so they are never bound.
func newWidgets(name string, slot config.Slot) view.Widgets {
	widgets := view.Widgets{
		AdView:          headless.NewPanel(name+".ad_view", false),
		PlaceholderView: headless.NewPanel(name+".placeholder_view", true),
		Placeholder:     headless.NewImage(name + ".placeholder"),
		StoreButton:     headless.NewButton(name + ".store_button"),
	}
	if slot.HasWidget(config.WidgetIcon) {
		widgets.Icon = headless.NewImage(name + ".icon")
	}
	if slot.HasWidget(config.WidgetHeadline) {
		widgets.Headline = headless.NewText(name + ".headline")
	}
	if slot.HasWidget(config.WidgetCallToAction) {
		widgets.CallToAction = headless.NewText(name + ".call_to_action")
	}
	if slot.HasWidget(config.WidgetAdChoices) {
		widgets.AdChoices = headless.NewImage(name + ".ad_choices")
	}
	return widgets
}
