package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/simkit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

// getCELEnv 获取或创建 CEL 环境，定义表达式可见的变量
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("target", cel.DynType),
			cel.Variable("options", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// CELFilter 是 CEL (Common Expression Language) 驱动的硬过滤器：
// 表达式返回 true 时剔除候选。业务团队可以用配置下发否决规则，
// 无需改代码发版。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：item.brand == "Acme" / item.gender != target.gender
//   - 数值：item.price > target.price * 2.0 / item.score < 0.3
//   - 逻辑：item.usage == "Formal" && target.usage == "Sports"
//   - 包含：item.name.contains("旧款")
//
// 示例：
//   - `item.price > target.price * 3.0` → 剔除价格超过目标三倍的候选
//   - `item.brand == "" && item.score < 0.7` → 剔除无品牌的低分候选
type CELFilter struct {
	expr string
	prg  cel.Program
}

// NewCELFilter 编译表达式并创建过滤器。表达式在此一次性编译，
// 之后可以被任意多个请求并发复用。
func NewCELFilter(expr string) (*CELFilter, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}

	return &CELFilter{expr: expr, prg: prg}, nil
}

func (f *CELFilter) Name() string { return "rules.cel" }

// ShouldFilter 执行表达式；结果必须是布尔值，否则返回错误（候选会被保留）。
func (f *CELFilter) ShouldFilter(ctx context.Context, target *core.CatalogItem, cand *core.ScoredCandidate) (bool, error) {
	out, _, err := f.prg.Eval(map[string]interface{}{
		"item":   itemInput(cand.Item, cand.Score, cand.BaseScore),
		"target": itemInput(target, 0, 0),
		"options": map[string]interface{}{},
	})
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// Expr 返回原始表达式（用于日志/配置回显）。
func (f *CELFilter) Expr() string { return f.expr }

// itemInput 把商品摊平为 CEL 可访问的 map。
// 不存在的 key 在 CEL 中访问会报错，因此所有字段都给出零值。
func itemInput(it *core.CatalogItem, score, base float64) map[string]interface{} {
	if it == nil {
		it = &core.CatalogItem{}
	}
	return map[string]interface{}{
		"id":              it.ID,
		"name":            it.Name,
		"price":           it.Price,
		"brand":           it.Brand,
		"gender":          it.Gender,
		"usage":           it.Usage,
		"master_category": it.Category.Master,
		"sub_category":    it.Category.Sub,
		"article_type":    it.Category.Article,
		"score":           score,
		"base_similarity": base,
	}
}
