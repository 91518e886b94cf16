package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"loanguard/internal/domain"
	"loanguard/internal/logger"
	"loanguard/internal/repository"
	iface "loanguard/internal/repository/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type ruleRepository struct {
	client    Client
	tableName string
	logger    logger.Logger
}

// NewRuleRepository creates a new DynamoDB protection rule repository
func NewRuleRepository(client Client, tableName string, log logger.Logger) iface.RuleRepository {
	return &ruleRepository{
		client:    client,
		tableName: tableName,
		logger:    log.With(logger.String("component", "rule_repository")),
	}
}

func (r *ruleRepository) Create(ctx context.Context, rule *domain.ProtectionRule) error {
	item, err := attributevalue.MarshalMap(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(rule_id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("failed to create rule %s: %w", rule.RuleID, repository.ErrAlreadyExists)
		}
		r.logger.Error("failed to create rule", logger.String("rule_id", rule.RuleID), logger.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}

	r.logger.Info("protection rule created",
		logger.String("rule_id", rule.RuleID),
		logger.String("user", rule.User))
	return nil
}

func (r *ruleRepository) GetByID(ctx context.Context, ruleID string) (*domain.ProtectionRule, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"rule_id": &types.AttributeValueMemberS{Value: ruleID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("rule %s: %w", ruleID, repository.ErrNotFound)
	}

	var rule domain.ProtectionRule
	if err := attributevalue.UnmarshalMap(result.Item, &rule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule: %w", err)
	}
	return &rule, nil
}

func (r *ruleRepository) SetActive(ctx context.Context, ruleID string, active bool) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"rule_id": &types.AttributeValueMemberS{Value: ruleID},
		},
		UpdateExpression:    aws.String("SET is_active = :active, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(rule_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":active": &types.AttributeValueMemberBOOL{Value: active},
			":now":    &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().UnixMilli(), 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("rule %s: %w", ruleID, repository.ErrNotFound)
		}
		return fmt.Errorf("failed to update rule is_active: %w", err)
	}

	r.logger.Info("protection rule updated",
		logger.String("rule_id", ruleID),
		logger.Bool("is_active", active))
	return nil
}

func (r *ruleRepository) Delete(ctx context.Context, ruleID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"rule_id": &types.AttributeValueMemberS{Value: ruleID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	r.logger.Info("protection rule deleted", logger.String("rule_id", ruleID))
	return nil
}
