package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitMetrics 重复初始化不应panic（promauto重复注册会panic）
func TestInitMetrics(t *testing.T) {
	InitMetrics()
	InitMetrics()

	require.NotNil(t, HTTPRequestsTotal)
	require.NotNil(t, AllocationsTotal)
	require.NotNil(t, QueueProcessingTotal)
	require.NotNil(t, CounterDriftTotal)
}

func TestObserveAllocation(t *testing.T) {
	InitMetrics()

	before := getCounterVecValue(t, AllocationsTotal, "allocated")
	beforeCount := getHistogramCount(t, AllocationDuration)

	ObserveAllocation("allocated", 3*time.Millisecond)
	ObserveAllocation("allocated", 5*time.Millisecond)
	ObserveAllocation("conflict", time.Millisecond)

	assert.Equal(t, before+2, getCounterVecValue(t, AllocationsTotal, "allocated"))
	assert.Equal(t, beforeCount+3, getHistogramCount(t, AllocationDuration))
}

func TestCirculationCounters(t *testing.T) {
	InitMetrics()

	expired := getCounterValue(t, ReservationsExpiredTotal)
	AddReservationsExpired(3)
	AddReservationsExpired(0)
	assert.Equal(t, expired+3, getCounterValue(t, ReservationsExpiredTotal))

	drift := getCounterValue(t, CounterDriftTotal)
	IncCounterDrift()
	assert.Equal(t, drift+1, getCounterValue(t, CounterDriftTotal))

	promoted := getCounterVecValue(t, QueueProcessingTotal, "promoted")
	IncQueueProcessing("promoted")
	assert.Equal(t, promoted+1, getCounterVecValue(t, QueueProcessingTotal, "promoted"))

	transitions := getCounterVecValue(t, LoanTransitionsTotal, "in_corso", "in_ritardo")
	IncLoanTransition("in_corso", "in_ritardo")
	assert.Equal(t, transitions+1, getCounterVecValue(t, LoanTransitionsTotal, "in_corso", "in_ritardo"))
}

func TestGaugeVec(t *testing.T) {
	InitMetrics()

	SetCircuitBreakerState("notify-amqp", 0)
	SetCircuitBreakerState("notify-log", 1)

	assert.Equal(t, float64(0), getGaugeVecValue(t, CircuitBreakerState, "notify-amqp"))
	assert.Equal(t, float64(1), getGaugeVecValue(t, CircuitBreakerState, "notify-log"))
}

// TestHTTPScenario 模拟HTTP请求处理
func TestHTTPScenario(t *testing.T) {
	InitMetrics()
	SetGauge(HTTPRequestsInProgress, 0)

	for i := 0; i < 10; i++ {
		IncGauge(HTTPRequestsInProgress)
		ObserveHistogramVec(HTTPRequestDuration, map[string]string{"method": "POST", "path": "/api/v1/loans"}, 0.01)
		IncCounterVec(HTTPRequestsTotal, map[string]string{"method": "POST", "path": "/api/v1/loans", "status": "200"})
		DecGauge(HTTPRequestsInProgress)
	}

	var m dto.Metric
	require.NoError(t, HTTPRequestsInProgress.Write(&m))
	assert.Equal(t, float64(0), m.Gauge.GetValue())
	assert.GreaterOrEqual(t, getCounterVecValue(t, HTTPRequestsTotal, "POST", "/api/v1/loans", "200"), float64(10))
}

// 辅助函数：获取Counter值
func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	var metric dto.Metric
	require.NoError(t, counter.Write(&metric), "读取Counter值失败")
	return metric.Counter.GetValue()
}

// 辅助函数：获取CounterVec值
func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	return getCounterValue(t, counterVec.WithLabelValues(labels...))
}

// 辅助函数：获取GaugeVec值
func getGaugeVecValue(t *testing.T, gaugeVec *prometheus.GaugeVec, labels ...string) float64 {
	var metric dto.Metric
	require.NoError(t, gaugeVec.WithLabelValues(labels...).Write(&metric), "读取GaugeVec值失败")
	return metric.Gauge.GetValue()
}

// 辅助函数：获取Histogram观测次数
func getHistogramCount(t *testing.T, histogram prometheus.Histogram) uint64 {
	var metric dto.Metric
	require.NoError(t, histogram.Write(&metric), "读取Histogram值失败")
	return metric.Histogram.GetSampleCount()
}
