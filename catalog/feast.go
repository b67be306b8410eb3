package catalog

import (
	"context"
	"fmt"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	feasttypes "github.com/feast-dev/feast/sdk/go/protos/feast/types"

	"github.com/rushteam/simkit/core"
)

// IDSource 提供当前在售商品的 ID 列表。
// Feast 在线库按实体 key 点查，无法枚举实体，因此活跃 ID
// 由外部来源（Redis 集合、商品中台、定时导出文件等）提供。
type IDSource interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// StaticIDs 把固定 ID 列表适配为 IDSource（测试/小目录场景）。
type StaticIDs []string

func (s StaticIDs) ActiveIDs(ctx context.Context) ([]string, error) { return s, nil }

// FeastCatalog 是 Feast Feature Store 实现的商品目录。
//
// 商品属性（价格/品牌/性别/用途/类目/首图）作为 item 实体的在线特征
// 存放在 Feast，目录读取即一次 GetOnlineFeatures 点查。
//
// 特征命名约定（featureView 默认 "catalog_item"）：
//   - catalog_item:name / brand / gender / usage / image
//   - catalog_item:price
//   - catalog_item:master_category / sub_category / article_type
//   - catalog_item:created_at（Unix 秒）
type FeastCatalog struct {
	// Project Feast 项目名称
	Project string

	// FeatureView 特征视图名称，默认 "catalog_item"
	FeatureView string

	// EntityKey 实体 key，默认 "item_id"
	EntityKey string

	// Timeout 单次调用超时时间
	Timeout time.Duration

	client *feastsdk.GrpcClient
	ids    IDSource
}

// NewFeastCatalog 连接 Feast Feature Server 并创建目录。
func NewFeastCatalog(host string, port int, project string, ids IDSource) (*FeastCatalog, error) {
	if port == 0 {
		port = 6565 // Feast gRPC 默认端口
	}
	client, err := feastsdk.NewGrpcClient(host, port)
	if err != nil {
		return nil, fmt.Errorf("connect feast: %w", err)
	}
	return &FeastCatalog{
		Project:     project,
		FeatureView: "catalog_item",
		EntityKey:   "item_id",
		Timeout:     5 * time.Second,
		client:      client,
		ids:         ids,
	}, nil
}

// GetByID 实现 core.Catalog 接口。
func (c *FeastCatalog) GetByID(ctx context.Context, id string) (*core.CatalogItem, error) {
	items, err := c.fetch(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || items[0] == nil {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "item not found: "+id)
	}
	return items[0], nil
}

// ListActive 实现 core.Catalog 接口。
func (c *FeastCatalog) ListActive(ctx context.Context, filter *core.Category) ([]*core.CatalogItem, error) {
	ids, err := c.ids.ActiveIDs(ctx)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "list active ids: "+err.Error())
	}
	items, err := c.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*core.CatalogItem, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if filter != nil && !core.CategoryConstraint(*filter, it.Category) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// fetch 按 ID 批量点查在线特征并组装商品快照。
// 查不到特征的实体返回 nil 占位（最终一致：已下架但 ID 还在来源里）。
func (c *FeastCatalog) fetch(ctx context.Context, ids []string) ([]*core.CatalogItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	fv := c.FeatureView
	features := []string{
		fv + ":name", fv + ":price", fv + ":brand",
		fv + ":gender", fv + ":usage", fv + ":image",
		fv + ":master_category", fv + ":sub_category", fv + ":article_type",
		fv + ":created_at",
	}

	entities := make([]feastsdk.Row, len(ids))
	for i, id := range ids {
		entities[i] = feastsdk.Row{c.EntityKey: feastsdk.StrVal(id)}
	}

	resp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: features,
		Entities: entities,
		Project:  c.Project,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeTimeout, "feast timeout: "+err.Error())
		}
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "feast get features: "+err.Error())
	}

	rows := resp.Rows()
	if len(rows) != len(ids) {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInternalError,
			fmt.Sprintf("feast row count mismatch: want %d, got %d", len(ids), len(rows)))
	}

	items := make([]*core.CatalogItem, len(ids))
	for i, row := range rows {
		name := valueString(row[fv+":name"])
		price := valueFloat(row[fv+":price"])
		if name == "" && price == 0 {
			continue // 实体无特征，视为不存在
		}
		item := &core.CatalogItem{
			ID:     ids[i],
			Name:   name,
			Price:  price,
			Brand:  valueString(row[fv+":brand"]),
			Gender: valueString(row[fv+":gender"]),
			Usage:  valueString(row[fv+":usage"]),
			Category: core.Category{
				Master:  valueString(row[fv+":master_category"]),
				Sub:     valueString(row[fv+":sub_category"]),
				Article: valueString(row[fv+":article_type"]),
			},
		}
		if img := valueString(row[fv+":image"]); img != "" {
			item.Images = []string{img}
		}
		if sec := valueFloat(row[fv+":created_at"]); sec > 0 {
			item.CreatedAt = time.Unix(int64(sec), 0)
		}
		items[i] = item
	}
	return items, nil
}

// Close 释放 Feast 客户端。
func (c *FeastCatalog) Close() error {
	c.client = nil
	return nil
}

// valueString 从 SDK 的 Value 中提取字符串值。
func valueString(v *feasttypes.Value) string {
	if v == nil {
		return ""
	}
	switch val := v.GetVal().(type) {
	case *feasttypes.Value_StringVal:
		return val.StringVal
	case *feasttypes.Value_BytesVal:
		return string(val.BytesVal)
	default:
		return ""
	}
}

// valueFloat 从 SDK 的 Value 中提取数值。
func valueFloat(v *feasttypes.Value) float64 {
	if v == nil {
		return 0
	}
	switch val := v.GetVal().(type) {
	case *feasttypes.Value_DoubleVal:
		return val.DoubleVal
	case *feasttypes.Value_FloatVal:
		return float64(val.FloatVal)
	case *feasttypes.Value_Int64Val:
		return float64(val.Int64Val)
	case *feasttypes.Value_Int32Val:
		return float64(val.Int32Val)
	default:
		return 0
	}
}

var _ core.Catalog = (*FeastCatalog)(nil)
