package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - Store 错误：NOT_FOUND, SHAPE_MISMATCH
//   - Index 错误：DIMENSION_MISMATCH, INVALID_INPUT
//   - Encoder 错误：ENCODE_FAILED, UNAVAILABLE, TIMEOUT
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "DIMENSION_MISMATCH"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "index", "encoder"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// IsDomainError 检查错误是否为 DomainError 类型
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*DomainError)
	return ok
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"       // 资源不存在
	ErrorCodeInvalidInput  = "INVALID_INPUT"   // 输入无效
	ErrorCodeUnavailable   = "UNAVAILABLE"     // 服务不可用
	ErrorCodeTimeout       = "TIMEOUT"         // 协作方调用超时
	ErrorCodeInternalError = "INTERNAL_ERROR"  // 内部错误

	// 向量相关错误代码
	ErrorCodeShapeMismatch     = "SHAPE_MISMATCH"     // 建库数组长度不一致（载入期致命）
	ErrorCodeDimensionMismatch = "DIMENSION_MISMATCH" // 查询向量维度不一致（查询期致命）

	// 编码相关错误代码
	ErrorCodeEncodeFailed = "ENCODE_FAILED" // 编码失败（取图失败/解码失败）
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 向量存储模块
	ModuleIndex     = "index"     // 相似度检索模块
	ModuleReconcile = "reconcile" // 身份对账模块
	ModuleEncoder   = "encoder"   // 向量编码模块
	ModuleCatalog   = "catalog"   // 商品目录模块
	ModuleEngine    = "engine"    // 推荐引擎模块
	ModuleCache     = "cache"     // 向量缓存模块
	ModuleRules     = "rules"     // 业务规则模块
)

// CodeOf 返回错误的代码；非 DomainError 返回空串。
func CodeOf(err error) string {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ""
}

// 通用错误检查函数

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsTimeout 检查错误是否为 TIMEOUT
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeTimeout
	}
	return false
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeUnavailable
	}
	return false
}

// IsShapeMismatch 检查错误是否为 SHAPE_MISMATCH
func IsShapeMismatch(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeShapeMismatch
	}
	return false
}

// IsDimensionMismatch 检查错误是否为 DIMENSION_MISMATCH
func IsDimensionMismatch(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeDimensionMismatch
	}
	return false
}

// IsSkippable 判断错误是否为"可跳过"级别：协作方超时/不可用/未找到/编码失败。
// 引擎对这类错误按 NotFound 语义降级处理（丢弃该候选或种子），不向上传播。
func IsSkippable(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		switch domainErr.Code {
		case ErrorCodeNotFound, ErrorCodeTimeout, ErrorCodeUnavailable, ErrorCodeEncodeFailed:
			return true
		}
	}
	return false
}
