package model

import (
	"errors"
	"fmt"
	"strings"
)

// 错误分类：全部在最小影响单元（报价 / 腿 / 资产）内恢复，不会中断整次扫描
var (
	// ErrDataUnavailable 场所或网络没有返回可用报价
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrSecondaryPriceUnresolved 计价资产无法换算成 USD
	ErrSecondaryPriceUnresolved = errors.New("secondary price unresolved")
	// ErrConfigurationGap 费用 / gas / 跨链桥配置缺失，已回退到默认值
	ErrConfigurationGap = errors.New("configuration gap")
	// ErrTransportFailure 网络客户端耗尽重试次数
	ErrTransportFailure = errors.New("transport failure")
)

// LegError 标记失败发生在哪个资产 / 场所 / 网络
type LegError struct {
	Asset   string
	Venue   string
	Network string
	Err     error
}

func (e *LegError) Error() string {
	parts := make([]string, 0, 3)
	if e.Asset != "" {
		parts = append(parts, "asset="+e.Asset)
	}
	if e.Venue != "" {
		parts = append(parts, "venue="+e.Venue)
	}
	if e.Network != "" {
		parts = append(parts, "network="+e.Network)
	}
	return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Err)
}

func (e *LegError) Unwrap() error { return e.Err }

// LegErrors flattens err (including errors.Join trees) into its leg failures.
// Errors that carry no leg information are wrapped with an empty LegError.
func LegErrors(err error) []*LegError {
	if err == nil {
		return nil
	}
	if le, ok := err.(*LegError); ok {
		return []*LegError{le}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*LegError
		for _, e := range joined.Unwrap() {
			out = append(out, LegErrors(e)...)
		}
		return out
	}
	var le *LegError
	if errors.As(err, &le) {
		return []*LegError{le}
	}
	return []*LegError{{Err: err}}
}

// Reason 错误分类名，用于日志与报告
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSecondaryPriceUnresolved):
		return "secondary_price_unresolved"
	case errors.Is(err, ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, ErrConfigurationGap):
		return "configuration_gap"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	default:
		return "data_unavailable"
	}
}
