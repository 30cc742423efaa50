// Package metrics 提供基于Prometheus的指标收集
//
// # 指标类型
//
//   - Counter（计数器）：只增不减，如分配次数、过期预约数
//   - Gauge（仪表盘）：可增可减，如正在处理的请求数、熔断器状态
//   - Histogram（直方图）：观测值分布，如分配耗时
//
// # 使用示例
//
//	// 1. 启动时初始化（重复调用安全）
//	metrics.InitMetrics()
//
//	// 2. 暴露/metrics端点
//	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
//	// 3. 业务代码记录指标
//	metrics.ObserveAllocation("allocated", time.Since(start))
//
// 流通相关的便捷函数在未初始化时不做任何事，领域代码和单元测试无需关心初始化顺序。
//
// # 命名规范
//
//  1. Counter以`_total`结尾：`circulation_allocations_total`
//  2. Histogram以单位结尾：`circulation_allocation_duration_seconds`
//  3. 标签只用有限取值（outcome、status），不要用book_id、user_id等高基数字段
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	initOnce sync.Once

	// HTTP请求相关指标

	// HTTPRequestsTotal HTTP请求总数（Counter）
	// 标签：method（GET/POST）、path（/api/v1/loans）、status（200/500）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration HTTP请求耗时（Histogram）
	// 桶设置：1ms、10ms、100ms、500ms、1s、5s、10s
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsInProgress 正在处理的HTTP请求数（Gauge）
	HTTPRequestsInProgress prometheus.Gauge

	// 流通业务指标

	// AllocationsTotal 副本分配结果（Counter）
	// 标签：outcome（allocated/conflict/exhausted）
	AllocationsTotal *prometheus.CounterVec

	// AllocationDuration 副本分配耗时（Histogram）
	AllocationDuration prometheus.Histogram

	// QueueProcessingTotal 队首预约处理结果（Counter）
	// 标签：result（promoted/empty/unavailable/conflict/expired_window）
	QueueProcessingTotal *prometheus.CounterVec

	// ReservationsExpiredTotal 过期清理的预约数（Counter）
	ReservationsExpiredTotal prometheus.Counter

	// CounterDriftTotal 重算时发现缓存计数漂移的次数（Counter）
	CounterDriftTotal prometheus.Counter

	// LoanTransitionsTotal 借阅状态流转（Counter）
	// 标签：from、to
	LoanTransitionsTotal *prometheus.CounterVec

	// NotificationsTotal 到书通知投递结果（Counter）
	// 标签：result（sent/failed）
	NotificationsTotal *prometheus.CounterVec

	// 熔断器指标

	// CircuitBreakerState 熔断器状态（Gauge）
	// 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerRequests 熔断器请求总数（Counter）
	// 标签：name（熔断器名称）、result（success/failure/rejected）
	CircuitBreakerRequests *prometheus.CounterVec

	// 消息队列指标

	// MessagesPublishedTotal 消息发布总数（Counter）
	// 标签：exchange（交换机）、routing_key（路由键）
	MessagesPublishedTotal *prometheus.CounterVec

	// MessagesConsumedTotal 消息消费总数（Counter）
	// 标签：queue（队列名称）、result（success/failure）
	MessagesConsumedTotal *prometheus.CounterVec

	// MessageProcessingDuration 消息处理耗时（Histogram）
	MessageProcessingDuration prometheus.Histogram
)

// InitMetrics 初始化所有Prometheus指标
//
// 使用promauto注册到默认Registry，只会执行一次
func InitMetrics() {
	initOnce.Do(register)
}

func register() {
	// HTTP请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP请求总数",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP请求耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "正在处理的HTTP请求数",
		},
	)

	// 流通业务指标
	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_allocations_total",
			Help: "副本分配次数",
		},
		[]string{"outcome"},
	)

	AllocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "circulation_allocation_duration_seconds",
			Help: "副本分配耗时（秒）",
			// 两次查询加一次行锁，通常在10ms以内
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	QueueProcessingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_queue_processing_total",
			Help: "队首预约处理次数",
		},
		[]string{"result"},
	)

	ReservationsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circulation_reservations_expired_total",
			Help: "过期清理的预约数",
		},
	)

	CounterDriftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circulation_counter_drift_total",
			Help: "重算发现图书计数漂移的次数",
		},
	)

	LoanTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_loan_transitions_total",
			Help: "借阅状态流转次数",
		},
		[]string{"from", "to"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_notifications_total",
			Help: "到书通知投递次数",
		},
		[]string{"result"},
	)

	// 熔断器指标
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "熔断器请求总数",
		},
		[]string{"name", "result"},
	)

	// 消息队列指标
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_published_total",
			Help: "消息发布总数",
		},
		[]string{"exchange", "routing_key"},
	)

	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_consumed_total",
			Help: "消息消费总数",
		},
		[]string{"queue", "result"},
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "消息处理耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)
}

// IncCounter 递增Counter（便捷函数）
func IncCounter(counter prometheus.Counter) {
	counter.Inc()
}

// IncCounterVec 递增CounterVec（带标签）
func IncCounterVec(counter *prometheus.CounterVec, labels map[string]string) {
	counter.With(labels).Inc()
}

// IncGauge 递增Gauge
func IncGauge(gauge prometheus.Gauge) {
	gauge.Inc()
}

// DecGauge 递减Gauge
func DecGauge(gauge prometheus.Gauge) {
	gauge.Dec()
}

// SetGauge 设置Gauge值
func SetGauge(gauge prometheus.Gauge, value float64) {
	gauge.Set(value)
}

// SetGaugeVec 设置GaugeVec值（带标签）
func SetGaugeVec(gauge *prometheus.GaugeVec, labels map[string]string, value float64) {
	gauge.With(labels).Set(value)
}

// ObserveHistogram 记录Histogram观测值
func ObserveHistogram(histogram prometheus.Histogram, value float64) {
	histogram.Observe(value)
}

// ObserveHistogramVec 记录HistogramVec观测值（带标签）
func ObserveHistogramVec(histogram *prometheus.HistogramVec, labels map[string]string, value float64) {
	histogram.With(labels).Observe(value)
}

// TrackHTTPInFlight 正在处理的请求数加减1
func TrackHTTPInFlight(delta int) {
	if HTTPRequestsInProgress == nil {
		return
	}
	HTTPRequestsInProgress.Add(float64(delta))
}

// ObserveHTTPRequest 记录一次HTTP请求，path使用路由模板避免高基数
func ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	if HTTPRequestsTotal == nil {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// =========================================
// 流通指标便捷函数（未初始化时为空操作）
// =========================================

// ObserveAllocation 记录一次分配结果与耗时
func ObserveAllocation(outcome string, elapsed time.Duration) {
	if AllocationsTotal == nil {
		return
	}
	AllocationsTotal.WithLabelValues(outcome).Inc()
	AllocationDuration.Observe(elapsed.Seconds())
}

// IncQueueProcessing 记录队首处理结果
func IncQueueProcessing(result string) {
	if QueueProcessingTotal == nil {
		return
	}
	QueueProcessingTotal.WithLabelValues(result).Inc()
}

// AddReservationsExpired 累加过期预约数
func AddReservationsExpired(n int) {
	if ReservationsExpiredTotal == nil || n <= 0 {
		return
	}
	ReservationsExpiredTotal.Add(float64(n))
}

// IncCounterDrift 记录一次计数漂移
func IncCounterDrift() {
	if CounterDriftTotal == nil {
		return
	}
	CounterDriftTotal.Inc()
}

// IncLoanTransition 记录借阅状态流转
func IncLoanTransition(from, to string) {
	if LoanTransitionsTotal == nil {
		return
	}
	LoanTransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncNotification 记录通知投递结果
func IncNotification(result string) {
	if NotificationsTotal == nil {
		return
	}
	NotificationsTotal.WithLabelValues(result).Inc()
}

// IncMessagePublished 记录消息发布
func IncMessagePublished(exchange, routingKey string) {
	if MessagesPublishedTotal == nil {
		return
	}
	MessagesPublishedTotal.WithLabelValues(exchange, routingKey).Inc()
}

// ObserveMessageConsumed 记录消息消费结果与耗时
func ObserveMessageConsumed(queue, result string, elapsed time.Duration) {
	if MessagesConsumedTotal == nil {
		return
	}
	MessagesConsumedTotal.WithLabelValues(queue, result).Inc()
	MessageProcessingDuration.Observe(elapsed.Seconds())
}

// SetCircuitBreakerState 记录熔断器状态
func SetCircuitBreakerState(name string, state int) {
	if CircuitBreakerState == nil {
		return
	}
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// IncCircuitBreakerRequest 记录熔断器请求结果
func IncCircuitBreakerRequest(name, result string) {
	if CircuitBreakerRequests == nil {
		return
	}
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}
