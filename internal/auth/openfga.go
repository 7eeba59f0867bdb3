package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// RelationStore 关系元组读写
type RelationStore interface {
	SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error
	CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error)
}

// OpenFGAClient OpenFGA 客户端
type OpenFGAClient struct {
	client  *client.OpenFgaClient
	storeID string
	modelID string
}

// NewOpenFGAClient 创建 OpenFGA 客户端,httpClient 可为 nil
func NewOpenFGAClient(apiURL, storeID, modelID string, httpClient *http.Client) (*OpenFGAClient, error) {
	configuration := client.ClientConfiguration{
		ApiUrl:               apiURL,
		StoreId:              storeID,
		AuthorizationModelId: modelID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodNone,
		},
		HTTPClient: httpClient,
	}

	fgaClient, err := client.NewSdkClient(&configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	return &OpenFGAClient{
		client:  fgaClient,
		storeID: storeID,
		modelID: modelID,
	}, nil
}

// NewOpenFGAClientWithRetry 带重试的 OpenFGA 客户端创建
func NewOpenFGAClientWithRetry(apiURL, storeID, modelID string, maxRetries int, retryInterval time.Duration) (*OpenFGAClient, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		fgaClient, err := NewOpenFGAClient(apiURL, storeID, modelID, nil)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok := fgaClient.CheckHealth(ctx)
			cancel()
			if ok {
				return fgaClient, nil
			}
			err = fmt.Errorf("OpenFGA store %s is not reachable", storeID)
		}
		lastErr = err

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}
	return nil, fmt.Errorf("failed to create OpenFGA client after %d retries: %w", maxRetries, lastErr)
}

func tuple(userID, objectType, objectID string) (string, string) {
	return "user:" + userID, objectType + ":" + objectID
}

// CheckPermission 检查关系
func (c *OpenFGAClient) CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error) {
	user, object := tuple(userID, objectType, objectID)
	body := client.ClientCheckRequest{
		User:     user,
		Relation: relation,
		Object:   object,
	}

	response, err := c.client.Check(ctx).Body(body).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return response.GetAllowed(), nil
}

// SetRelation 写入关系
func (c *OpenFGAClient) SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	user, object := tuple(userID, objectType, objectID)
	body := client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{
			{User: user, Relation: relation, Object: object},
		},
	}

	if _, err := c.client.Write(ctx).Body(body).Execute(); err != nil {
		return fmt.Errorf("failed to set relation: %w", err)
	}
	return nil
}

// CheckHealth 检查 OpenFGA 连接健康状态
func (c *OpenFGAClient) CheckHealth(ctx context.Context) bool {
	if c == nil || c.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.Read(ctx).Execute()
	return err == nil
}

// StakeholderSync 将参与人指定同步为 OpenFGA 关系
//
// 作为事件下游注册,只处理 StakeholderAssigned 事件:
// assessment:<id>#reviewer@user:<id> 或 assessment:<id>#approver@user:<id>。
type StakeholderSync struct {
	store RelationStore
}

// NewStakeholderSync 创建同步器
func NewStakeholderSync(store RelationStore) *StakeholderSync {
	return &StakeholderSync{store: store}
}

// Publish 实现 events.Sink
func (s *StakeholderSync) Publish(ctx context.Context, env events.Envelope) error {
	if env.Type != events.TypeStakeholderAssigned {
		return nil
	}
	payload, err := env.Decode()
	if err != nil {
		return err
	}
	assigned := payload.(events.StakeholderAssigned)
	relation := strings.ToLower(assigned.Kind)
	return s.store.SetRelation(ctx, assigned.UserID, relation, "assessment", env.AssessmentID)
}
