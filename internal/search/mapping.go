package search

// indexMapping is the fixed schema of the ticket index: keyword identities,
// Brazilian-Portuguese analyzed text fields and nested related collections.
// It is applied only when the index is first created, never to an existing
// index.
const indexMapping = `{
  "mappings": {
    "properties": {
      "ticket_id": {"type": "keyword"},
      "title": {
        "type": "text",
        "analyzer": "brazilian",
        "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
      },
      "description": {"type": "text", "analyzer": "brazilian"},
      "channel": {"type": "keyword"},
      "device": {"type": "keyword"},
      "current_status": {"type": "keyword"},
      "sla_plan": {"type": "keyword"},
      "priority": {"type": "keyword"},
      "dates": {
        "properties": {
          "created_at": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd||epoch_millis"},
          "first_response_at": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd||epoch_millis"},
          "closed_at": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd||epoch_millis"}
        }
      },
      "company": {
        "properties": {
          "id": {"type": "keyword"},
          "name": {
            "type": "text",
            "analyzer": "brazilian",
            "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
          },
          "cnpj": {"type": "keyword"},
          "segment": {"type": "keyword"}
        }
      },
      "created_by_user": {
        "properties": {
          "id": {"type": "keyword"},
          "full_name": {
            "type": "text",
            "analyzer": "brazilian",
            "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
          },
          "email": {"type": "keyword"},
          "phone": {"type": "keyword"},
          "cpf": {"type": "keyword"},
          "is_vip": {"type": "boolean"}
        }
      },
      "assigned_agent": {
        "properties": {
          "id": {"type": "keyword"},
          "full_name": {
            "type": "text",
            "analyzer": "brazilian",
            "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
          },
          "email": {"type": "keyword"},
          "department": {"type": "keyword"}
        }
      },
      "product": {
        "properties": {
          "id": {"type": "keyword"},
          "name": {
            "type": "text",
            "analyzer": "brazilian",
            "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
          },
          "code": {"type": "keyword"},
          "description": {"type": "text", "analyzer": "brazilian"}
        }
      },
      "category": {
        "properties": {
          "id": {"type": "keyword"},
          "name": {
            "type": "text",
            "analyzer": "brazilian",
            "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
          }
        }
      },
      "subcategory": {
        "properties": {
          "id": {"type": "keyword"},
          "name": {
            "type": "text",
            "analyzer": "brazilian",
            "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
          }
        }
      },
      "attachments": {
        "type": "nested",
        "properties": {
          "id": {"type": "keyword"},
          "filename": {
            "type": "text",
            "analyzer": "brazilian",
            "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
          },
          "mime_type": {"type": "keyword"},
          "size_bytes": {"type": "long"},
          "storage_path": {"type": "keyword", "index": false},
          "uploaded_at": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd||epoch_millis"}
        }
      },
      "tags": {"type": "keyword"},
      "status_history": {
        "type": "nested",
        "properties": {
          "from_status": {"type": "keyword"},
          "to_status": {"type": "keyword"},
          "changed_at": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd||epoch_millis"},
          "changed_by_agent_id": {"type": "keyword"},
          "changed_by_agent_name": {"type": "text", "analyzer": "brazilian"}
        }
      },
      "audit_logs": {
        "type": "nested",
        "properties": {
          "entity_type": {"type": "keyword"},
          "entity_id": {"type": "keyword"},
          "operation": {"type": "keyword"},
          "performed_by": {"type": "keyword"},
          "performed_at": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd||epoch_millis"},
          "details": {"type": "object", "enabled": false}
        }
      },
      "sla_metrics": {
        "properties": {
          "first_response_time_minutes": {"type": "integer"},
          "resolution_time_minutes": {"type": "integer"},
          "first_response_sla_breached": {"type": "boolean"},
          "resolution_sla_breached": {"type": "boolean"}
        }
      },
      "search_text": {"type": "text", "analyzer": "brazilian"}
    }
  },
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 1,
    "analysis": {
      "analyzer": {
        "brazilian": {
          "tokenizer": "standard",
          "filter": ["lowercase", "brazilian_stop", "brazilian_stemmer", "asciifolding"]
        }
      },
      "filter": {
        "brazilian_stop": {"type": "stop", "stopwords": "_brazilian_"},
        "brazilian_stemmer": {"type": "stemmer", "language": "brazilian"}
      }
    }
  }
}`
