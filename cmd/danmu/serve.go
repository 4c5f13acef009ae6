package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	amqp "github.com/rabbitmq/amqp091-go"

	"bili-danmu/internal/config"
	"bili-danmu/internal/discovery"
	"bili-danmu/internal/handler"
	"bili-danmu/internal/infra"
	"bili-danmu/internal/observability"
	"bili-danmu/internal/repository"
	"bili-danmu/internal/service"
	"bili-danmu/internal/session"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Relay configured rooms and serve subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			observability.InitLogger("danmu")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to danmu.toml")

	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	observability.RegisterMetrics()

	// 构建依赖
	db, err := repository.NewDB()
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return err
	}
	redisClient := infra.NewRedisClient()
	if err := infra.PingRedis(parent, redisClient); err != nil {
		log.Warn().Err(err).Msg("Redis 未就绪，将回退 MySQL seq 方案")
		redisClient = nil
	}

	connManager := service.NewConnectionManager()
	eventSvc := service.NewEventServiceWithSeq(repository.NewEventRepository(db), seqGenerator(cfg, db, redisClient)).
		WithPusher(service.NewPushService(connManager))

	var recent handler.RecentReader
	var retryer *service.AsyncRecentRetryer
	if redisClient != nil {
		writer := service.NewRedisRecentWriter(redisClient, "danmu:recent:", cfg.RecentTTL(), cfg.RecentLimit)
		retryer = service.NewAsyncRecentRetryer(writer, service.RetryOptions{})
		eventSvc.WithRecent(writer).WithRetryer(retryer)
		recent = writer
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink service.EventSink = eventSvc
	if cfg.UseMQ {
		mqConn, producer, err := startPipeline(ctx, eventSvc)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ 未就绪，事件直接落库")
		} else {
			defer mqConn.Close()
			sink = producer
		}
	}

	pullSvc := service.NewPullService(repository.NewPullRepository(db))

	// 初始化 Gin，引入基础日志与 panic 恢复
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	handler.RegisterRoutes(router,
		handler.NewWebSocketHandler(connManager, pullSvc),
		handler.NewHTTPHandler(pullSvc, recent),
	)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("WebSocket/Gin 服务启动")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("服务启动失败")
			stop()
		}
	}()

	locator := discovery.NewClient(cfg.DiscoveryURL)
	relay := service.NewRelay(locator, sink,
		session.WithClientVer(cfg.ClientVer),
		session.WithHeartbeatInterval(cfg.HeartbeatInterval()),
	)
	var wg sync.WaitGroup
	for _, roomID := range cfg.Rooms {
		wg.Add(1)
		go func(roomID uint64) {
			defer wg.Done()
			if err := relay.Run(ctx, roomID); err != nil {
				log.Error().Err(err).Uint64("room_id", roomID).Msg("直播间接入失败")
				return
			}
			log.Info().Uint64("room_id", roomID).Msg("直播间接入结束")
		}(roomID)
	}

	// 监听系统信号，优雅退出
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("服务关闭异常")
	}
	wg.Wait()
	retryer.Stop()
	log.Info().Msg("服务已关闭")
	return nil
}

// seqGenerator 按配置选择 seq 方案，Redis 不可用时回退 MySQL。
func seqGenerator(cfg config.Config, db *gorm.DB, rdb *redis.Client) service.SeqGenerator {
	if cfg.SeqBackend == "redis" && rdb != nil {
		return service.NewRedisSeqGenerator(rdb, "danmu:seq:")
	}
	return repository.NewSeqRepository(db)
}

// startPipeline 声明拓扑并启动消费者，返回用于发布的生产者。
func startPipeline(ctx context.Context, eventSvc *service.EventService) (*amqp.Connection, *service.EventProducer, error) {
	mqCfg := infra.LoadRabbitMQConfig()
	conn, err := infra.NewRabbitMQ(mqCfg)
	if err != nil {
		return nil, nil, err
	}
	pubCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := infra.PrepareRabbitTopology(pubCh, mqCfg); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	consumeCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := service.NewEventConsumer(consumeCh, mqCfg.Queue, eventSvc).Start(ctx); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	log.Info().Str("exchange", mqCfg.Exchange).Str("queue", mqCfg.Queue).Msg("事件队列已启用")
	return conn, service.NewEventProducer(pubCh, mqCfg.Exchange, mqCfg.RoutingKey), nil
}
