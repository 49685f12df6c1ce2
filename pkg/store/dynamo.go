package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/oklog/ulid/v2"
)

// DynamoDB key prefixes for the activity table.
const (
	activityPKPrefix = "VEHICLE#"
	activitySKPrefix = "ACTIVITY#"
)

type dynamoPutter interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// activityItem is the DynamoDB shape of an activity entry. Keys are added at write time.
type activityItem struct {
	UserID    string `dynamodbav:"userId"`
	VehicleID string `dynamodbav:"vehicleId"`
	EventID   string `dynamodbav:"eventId,omitempty"`
	Action    string `dynamodbav:"action"`
	Count     int    `dynamodbav:"count,omitempty"`
	CreatedAt string `dynamodbav:"createdAt"`
}

/**************************************************************************************************
** DynamoActivityLog is an ActivitySink writing to a DynamoDB table keyed PK=VEHICLE#<id>,
** SK=ACTIVITY#<ulid>, so a vehicle's activity queries back in time order.
**************************************************************************************************/
type DynamoActivityLog struct {
	client dynamoPutter
	table  string
}

// NewDynamoActivityLog builds the sink from the default AWS configuration.
func NewDynamoActivityLog(ctx context.Context, table, region string) (*DynamoActivityLog, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return &DynamoActivityLog{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

func (d *DynamoActivityLog) LogActivity(ctx context.Context, entry utils.TActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	item, err := attributevalue.MarshalMap(activityItem{
		UserID:    entry.UserID,
		VehicleID: entry.VehicleID,
		EventID:   entry.EventID,
		Action:    entry.Action,
		Count:     entry.Count,
		CreatedAt: createdAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	pk := activityPKPrefix + entry.VehicleID
	sk := activitySKPrefix + ulid.MustNew(ulid.Timestamp(createdAt), ulid.DefaultEntropy()).String()
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}
