package streams

import (
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

// The Lambda events package and the DynamoDB service API each carry their own
// attribute value representation. Everything below converts those into the
// service API form so attributevalue can unmarshal stream images straight
// into model structs.

func convertEventAttributeValue(eventVal events.DynamoDBAttributeValue) (dynamodbtypes.AttributeValue, error) {
	switch eventVal.DataType() {
	case events.DataTypeString:
		return &dynamodbtypes.AttributeValueMemberS{Value: eventVal.String()}, nil
	case events.DataTypeNumber:
		return &dynamodbtypes.AttributeValueMemberN{Value: eventVal.Number()}, nil
	case events.DataTypeBinary:
		return &dynamodbtypes.AttributeValueMemberB{Value: eventVal.Binary()}, nil
	case events.DataTypeBoolean:
		return &dynamodbtypes.AttributeValueMemberBOOL{Value: eventVal.Boolean()}, nil
	case events.DataTypeMap:
		mapVal, err := convertEventImage(eventVal.Map())
		if err != nil {
			return nil, fmt.Errorf("error converting map attribute: %w", err)
		}
		return &dynamodbtypes.AttributeValueMemberM{Value: mapVal}, nil
	case events.DataTypeList:
		listVal := make([]dynamodbtypes.AttributeValue, len(eventVal.List()))
		for i, item := range eventVal.List() {
			converted, err := convertEventAttributeValue(item)
			if err != nil {
				return nil, fmt.Errorf("error converting list item at index %d: %w", i, err)
			}
			listVal[i] = converted
		}
		return &dynamodbtypes.AttributeValueMemberL{Value: listVal}, nil
	case events.DataTypeNull:
		return &dynamodbtypes.AttributeValueMemberNULL{Value: eventVal.IsNull()}, nil
	case events.DataTypeStringSet:
		return &dynamodbtypes.AttributeValueMemberSS{Value: eventVal.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &dynamodbtypes.AttributeValueMemberNS{Value: eventVal.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &dynamodbtypes.AttributeValueMemberBS{Value: eventVal.BinarySet()}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type: %v", eventVal.DataType())
	}
}

func convertEventImage(eventImage map[string]events.DynamoDBAttributeValue) (map[string]dynamodbtypes.AttributeValue, error) {
	item := make(map[string]dynamodbtypes.AttributeValue, len(eventImage))
	for k, v := range eventImage {
		converted, err := convertEventAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("error converting attribute %s: %w", k, err)
		}
		item[k] = converted
	}
	return item, nil
}

// UnmarshalEventStreamImage unmarshals a Lambda stream event image (NewImage
// or OldImage) into a target struct.
func UnmarshalEventStreamImage[T any](eventImage map[string]events.DynamoDBAttributeValue, out *T) error {
	if eventImage == nil {
		return fmt.Errorf("event image is nil")
	}
	item, err := convertEventImage(eventImage)
	if err != nil {
		return fmt.Errorf("failed to convert event stream image: %w", err)
	}
	return attributevalue.UnmarshalMap(item, out)
}

func convertStreamAttributeValue(val streamtypes.AttributeValue) (dynamodbtypes.AttributeValue, error) {
	switch av := val.(type) {
	case *streamtypes.AttributeValueMemberS:
		return &dynamodbtypes.AttributeValueMemberS{Value: av.Value}, nil
	case *streamtypes.AttributeValueMemberN:
		return &dynamodbtypes.AttributeValueMemberN{Value: av.Value}, nil
	case *streamtypes.AttributeValueMemberB:
		return &dynamodbtypes.AttributeValueMemberB{Value: av.Value}, nil
	case *streamtypes.AttributeValueMemberBOOL:
		return &dynamodbtypes.AttributeValueMemberBOOL{Value: av.Value}, nil
	case *streamtypes.AttributeValueMemberNULL:
		return &dynamodbtypes.AttributeValueMemberNULL{Value: av.Value}, nil
	case *streamtypes.AttributeValueMemberM:
		mapVal, err := convertStreamImage(av.Value)
		if err != nil {
			return nil, fmt.Errorf("error converting map attribute: %w", err)
		}
		return &dynamodbtypes.AttributeValueMemberM{Value: mapVal}, nil
	case *streamtypes.AttributeValueMemberL:
		listVal := make([]dynamodbtypes.AttributeValue, len(av.Value))
		for i, item := range av.Value {
			converted, err := convertStreamAttributeValue(item)
			if err != nil {
				return nil, fmt.Errorf("error converting list item at index %d: %w", i, err)
			}
			listVal[i] = converted
		}
		return &dynamodbtypes.AttributeValueMemberL{Value: listVal}, nil
	case *streamtypes.AttributeValueMemberSS:
		return &dynamodbtypes.AttributeValueMemberSS{Value: av.Value}, nil
	case *streamtypes.AttributeValueMemberNS:
		return &dynamodbtypes.AttributeValueMemberNS{Value: av.Value}, nil
	case *streamtypes.AttributeValueMemberBS:
		return &dynamodbtypes.AttributeValueMemberBS{Value: av.Value}, nil
	default:
		return nil, fmt.Errorf("unsupported stream attribute type: %T", val)
	}
}

func convertStreamImage(image map[string]streamtypes.AttributeValue) (map[string]dynamodbtypes.AttributeValue, error) {
	item := make(map[string]dynamodbtypes.AttributeValue, len(image))
	for k, v := range image {
		converted, err := convertStreamAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("error converting attribute %s: %w", k, err)
		}
		item[k] = converted
	}
	return item, nil
}

// UnmarshalStreamImage unmarshals a DynamoDB Streams API image into a target
// struct. The poller path reads images in this representation.
func UnmarshalStreamImage[T any](image map[string]streamtypes.AttributeValue, out *T) error {
	if image == nil {
		return fmt.Errorf("stream image is nil")
	}
	item, err := convertStreamImage(image)
	if err != nil {
		return fmt.Errorf("failed to convert stream image: %w", err)
	}
	return attributevalue.UnmarshalMap(item, out)
}
