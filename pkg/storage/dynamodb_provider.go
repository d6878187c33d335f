package storage

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// DynamoDBProvider implements the StorageProvider interface using DynamoDB.
type DynamoDBProvider struct {
	client       dynamodbiface.DynamoDBAPI
	projectStore *DynamoDBProjectStore
	flowStore    *DynamoDBFlowStore
	tablePrefix  string
}

// DynamoDBProviderConfig contains configuration for the DynamoDB provider.
type DynamoDBProviderConfig struct {
	Region      string `json:"region"`
	AccessKey   string `json:"access_key"`
	SecretKey   string `json:"secret_key"`
	TablePrefix string `json:"table_prefix"`
	Endpoint    string `json:"endpoint"` // Optional, for local DynamoDB
}

// NewDynamoDBProvider creates a new DynamoDB storage provider.
func NewDynamoDBProvider(config DynamoDBProviderConfig) (*DynamoDBProvider, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		)
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewDynamoDBProviderWithClient(dynamodb.New(sess), config.TablePrefix), nil
}

// NewDynamoDBProviderWithClient creates a new DynamoDB storage provider with
// a custom client. This is primarily used for testing with mock clients.
func NewDynamoDBProviderWithClient(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBProvider {
	return &DynamoDBProvider{
		client:       client,
		tablePrefix:  tablePrefix,
		projectStore: NewDynamoDBProjectStore(client, tablePrefix),
		flowStore:    NewDynamoDBFlowStore(client, tablePrefix),
	}
}

// Initialize sets up the storage backend.
func (p *DynamoDBProvider) Initialize() error {
	if err := p.projectStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize project store: %w", err)
	}
	if err := p.flowStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize flow store: %w", err)
	}
	return nil
}

// Close cleans up resources.
func (p *DynamoDBProvider) Close() error {
	// Nothing to close for DynamoDB client
	return nil
}

// GetProjectStore returns a store for project records.
func (p *DynamoDBProvider) GetProjectStore() ProjectStore {
	return p.projectStore
}

// GetFlowStore returns a store for flow definitions.
func (p *DynamoDBProvider) GetFlowStore() FlowStore {
	return p.flowStore
}

// ensureTable creates a DynamoDB table if it doesn't exist and waits until
// it becomes available.
func ensureTable(client dynamodbiface.DynamoDBAPI, input *dynamodb.CreateTableInput) error {
	_, err := client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: input.TableName,
	})
	if err == nil {
		// Table exists
		return nil
	}

	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeResourceNotFoundException {
		if _, err := client.CreateTable(input); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		err = client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
			TableName: input.TableName,
		})
		if err != nil {
			return fmt.Errorf("failed to wait for table creation: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed to check if table exists: %w", err)
}

// DynamoDBProjectStore implements the ProjectStore interface using DynamoDB.
type DynamoDBProjectStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// NewDynamoDBProjectStore creates a new DynamoDB project store.
func NewDynamoDBProjectStore(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBProjectStore {
	return &DynamoDBProjectStore{
		client:    client,
		tableName: tablePrefix + "projects",
	}
}

// Initialize creates the projects table if it doesn't exist.
func (s *DynamoDBProjectStore) Initialize() error {
	return ensureTable(s.client, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("ProjectID"),
				AttributeType: aws.String("S"),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("ProjectID"),
				KeyType:       aws.String("HASH"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	})
}

// dynamoDBProjectItem represents a project record in DynamoDB.
type dynamoDBProjectItem struct {
	ProjectID   string `json:"ProjectID"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	CreatedAt   int64  `json:"CreatedAt"`
	UpdatedAt   int64  `json:"UpdatedAt"`
}

// SaveProject persists a project record.
func (s *DynamoDBProjectStore) SaveProject(project Project) error {
	item, err := dynamodbattribute.MarshalMap(dynamoDBProjectItem{
		ProjectID:   project.ID,
		Name:        project.Name,
		Description: project.Description,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// GetProject retrieves a project record.
func (s *DynamoDBProjectStore) GetProject(projectID string) (Project, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ProjectID": {S: aws.String(projectID)},
		},
	})
	if err != nil {
		return Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	if result.Item == nil {
		return Project{}, ErrProjectNotFound
	}

	var item dynamoDBProjectItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return Project{}, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return Project{
		ID:          item.ProjectID,
		Name:        item.Name,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}, nil
}

// ListProjects returns all project records sorted by creation time.
func (s *DynamoDBProjectStore) ListProjects() ([]Project, error) {
	var projects []Project

	err := s.client.ScanPages(&dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, raw := range page.Items {
			var item dynamoDBProjectItem
			if err := dynamodbattribute.UnmarshalMap(raw, &item); err != nil {
				continue
			}
			projects = append(projects, Project{
				ID:          item.ProjectID,
				Name:        item.Name,
				Description: item.Description,
				CreatedAt:   item.CreatedAt,
				UpdatedAt:   item.UpdatedAt,
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	sortProjects(projects)
	return projects, nil
}

// DeleteProject removes a project record.
func (s *DynamoDBProjectStore) DeleteProject(projectID string) error {
	_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ProjectID": {S: aws.String(projectID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// DynamoDBFlowStore implements the FlowStore interface using DynamoDB.
type DynamoDBFlowStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// NewDynamoDBFlowStore creates a new DynamoDB flow store.
func NewDynamoDBFlowStore(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBFlowStore {
	return &DynamoDBFlowStore{
		client:    client,
		tableName: tablePrefix + "flows",
	}
}

// Initialize creates the flows table if it doesn't exist.
func (s *DynamoDBFlowStore) Initialize() error {
	return ensureTable(s.client, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("ProjectID"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("FlowID"),
				AttributeType: aws.String("S"),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("ProjectID"),
				KeyType:       aws.String("HASH"),
			},
			{
				AttributeName: aws.String("FlowID"),
				KeyType:       aws.String("RANGE"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	})
}

// dynamoDBFlowItem represents a flow in DynamoDB. Both artifacts travel in
// the same item.
type dynamoDBFlowItem struct {
	ProjectID  string `json:"ProjectID"`
	FlowID     string `json:"FlowID"`
	Definition []byte `json:"Definition"`
	Document   []byte `json:"Document"`
}

// SaveFlow persists the JSON definition and the exported document.
func (s *DynamoDBFlowStore) SaveFlow(projectID, flowID string, definition, document []byte) error {
	item, err := dynamodbattribute.MarshalMap(dynamoDBFlowItem{
		ProjectID:  projectID,
		FlowID:     flowID,
		Definition: definition,
		Document:   document,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}
	return nil
}

// getItem retrieves the full flow item.
func (s *DynamoDBFlowStore) getItem(projectID, flowID string) (dynamoDBFlowItem, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ProjectID": {S: aws.String(projectID)},
			"FlowID":    {S: aws.String(flowID)},
		},
	})
	if err != nil {
		return dynamoDBFlowItem{}, fmt.Errorf("failed to get flow: %w", err)
	}
	if result.Item == nil {
		return dynamoDBFlowItem{}, ErrFlowNotFound
	}

	var item dynamoDBFlowItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return dynamoDBFlowItem{}, fmt.Errorf("failed to unmarshal flow: %w", err)
	}
	return item, nil
}

// GetFlow retrieves the JSON definition.
func (s *DynamoDBFlowStore) GetFlow(projectID, flowID string) ([]byte, error) {
	item, err := s.getItem(projectID, flowID)
	if err != nil {
		return nil, err
	}
	return item.Definition, nil
}

// GetFlowDocument retrieves the exported tree document.
func (s *DynamoDBFlowStore) GetFlowDocument(projectID, flowID string) ([]byte, error) {
	item, err := s.getItem(projectID, flowID)
	if err != nil {
		return nil, err
	}
	return item.Document, nil
}

// ListFlows returns all stored flows of a project, sorted by flow id.
func (s *DynamoDBFlowStore) ListFlows(projectID string) ([]StoredFlow, error) {
	var flows []StoredFlow

	err := s.client.QueryPages(&dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("ProjectID = :pid"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pid": {S: aws.String(projectID)},
		},
	}, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		for _, raw := range page.Items {
			var item dynamoDBFlowItem
			if err := dynamodbattribute.UnmarshalMap(raw, &item); err != nil {
				continue
			}
			flows = append(flows, StoredFlow{
				FlowID:     item.FlowID,
				Definition: item.Definition,
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	return flows, nil
}

// RenameFlow moves both artifacts under a new flow id. DynamoDB keys are
// immutable, so this is a get, a put and a delete.
func (s *DynamoDBFlowStore) RenameFlow(projectID, oldID, newID string) error {
	item, err := s.getItem(projectID, oldID)
	if err != nil {
		return err
	}

	if err := s.SaveFlow(projectID, newID, item.Definition, item.Document); err != nil {
		return err
	}
	return s.DeleteFlow(projectID, oldID)
}

// DeleteFlow removes both artifacts.
func (s *DynamoDBFlowStore) DeleteFlow(projectID, flowID string) error {
	_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ProjectID": {S: aws.String(projectID)},
			"FlowID":    {S: aws.String(flowID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	return nil
}

// DeleteProjectFlows removes every flow of a project.
func (s *DynamoDBFlowStore) DeleteProjectFlows(projectID string) error {
	flows, err := s.ListFlows(projectID)
	if err != nil {
		return err
	}
	for _, stored := range flows {
		if err := s.DeleteFlow(projectID, stored.FlowID); err != nil {
			return err
		}
	}
	return nil
}
