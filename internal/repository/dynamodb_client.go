package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"pagesmith/internal/domain"
)

const (
	skPrefixFile = "FILE#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL

	// maxFilesPerSite keeps SaveSite inside one transaction (100 items, one of
	// them the META# record).
	maxFilesPerSite = 99
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores generated sites in a single DynamoDB table: one META# record
// per site plus one FILE#<name> record per file, all under SITE#<path>.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sitePK returns the DynamoDB partition key for a site.
func sitePK(path string) string {
	return "SITE#" + path
}

func fileSK(name string) string {
	return skPrefixFile + name
}

// ttlValue returns a Unix timestamp 30 days after t.
func ttlValue(t time.Time) int64 {
	return t.Add(ttlDuration).Unix()
}

// SaveSite writes the manifest and every file in one transaction. The site
// path must be new.
func (c *Client) SaveSite(ctx context.Context, site domain.Site) error {
	if err := validateSite(site); err != nil {
		return fmt.Errorf("repository: SaveSite: %w", err)
	}
	if len(site.Files) > maxFilesPerSite {
		return fmt.Errorf("repository: SaveSite: %d files exceeds limit of %d", len(site.Files), maxFilesPerSite)
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	ttl := ttlValue(site.CreatedAt)

	items := make([]types.TransactWriteItem, 0, len(site.Files)+1)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(c.tableName),
			Item:                metaItem(site, ttl),
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		},
	})
	for _, f := range site.Files {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(c.tableName),
				Item:      fileItem(site.Path, f, ttl),
			},
		})
	}

	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: SaveSite: %w", err)
	}
	return nil
}

// GetFile returns one stored file, or ErrNotFound.
func (c *Client) GetFile(ctx context.Context, path, name string) (domain.File, error) {
	if !validPath(path) || !validName(name) {
		return domain.File{}, ErrNotFound
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sitePK(path)},
			"SK": &types.AttributeValueMemberS{Value: fileSK(name)},
		},
	})
	if err != nil {
		return domain.File{}, fmt.Errorf("repository: GetFile get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.File{}, ErrNotFound
	}
	content, err := strAttr(out.Item, "content")
	if err != nil {
		return domain.File{}, fmt.Errorf("repository: GetFile decode: %w", err)
	}
	return domain.File{Name: name, Content: content}, nil
}

// GetManifest reads the META# record and lists file names in name order.
func (c *Client) GetManifest(ctx context.Context, path string) (domain.Manifest, error) {
	if !validPath(path) {
		return domain.Manifest{}, ErrNotFound
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sitePK(path)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("repository: GetManifest get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Manifest{}, ErrNotFound
	}
	m, err := itemToManifest(out.Item)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("repository: GetManifest decode: %w", err)
	}
	m.Path = path

	names, err := c.listFileNames(ctx, path)
	if err != nil {
		return domain.Manifest{}, err
	}
	m.Files = names
	return m, nil
}

func (c *Client) listFileNames(ctx context.Context, path string) ([]string, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sitePK(path)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixFile},
		},
		ProjectionExpression: aws.String("SK"),
		ScanIndexForward:     aws.Bool(true),
	}

	names := []string{}
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: GetManifest query: %w", err)
		}
		for _, item := range out.Items {
			sk, err := strAttr(item, "SK")
			if err != nil {
				return nil, fmt.Errorf("repository: GetManifest unmarshal: %w", err)
			}
			names = append(names, strings.TrimPrefix(sk, skPrefixFile))
		}
		if len(out.LastEvaluatedKey) == 0 {
			return names, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func metaItem(site domain.Site, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: sitePK(site.Path)},
		"SK":           &types.AttributeValueMemberS{Value: skMeta},
		"path":         &types.AttributeValueMemberS{Value: site.Path},
		"model":        &types.AttributeValueMemberS{Value: site.Model},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(site.Turns)},
		"promptTokens": &types.AttributeValueMemberN{Value: strconv.Itoa(site.PromptTokens)},
		"fileCount":    &types.AttributeValueMemberN{Value: strconv.Itoa(len(site.Files))},
		"createdAt":    &types.AttributeValueMemberS{Value: site.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func fileItem(path string, f domain.File, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: sitePK(path)},
		"SK":      &types.AttributeValueMemberS{Value: fileSK(f.Name)},
		"name":    &types.AttributeValueMemberS{Value: f.Name},
		"content": &types.AttributeValueMemberS{Value: f.Content},
		"ttl":     &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

// itemToManifest converts a META# record; model is optional.
func itemToManifest(item map[string]types.AttributeValue) (domain.Manifest, error) {
	turns, err := intAttr(item, "turns")
	if err != nil {
		return domain.Manifest{}, err
	}
	promptTokens, err := intAttr(item, "promptTokens")
	if err != nil {
		return domain.Manifest{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.Manifest{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("repository: parse attribute %q: %w", "createdAt", err)
	}
	model, _ := strAttr(item, "model") // allow empty

	return domain.Manifest{
		Model:        model,
		Turns:        turns,
		PromptTokens: promptTokens,
		CreatedAt:    createdAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
