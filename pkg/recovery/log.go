package recovery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

/*
   Logs come in the following forms:

   EDIT log -- actions that modify index state;
   < Tx, index, INSERT|DELETE, key, value >

   START log -- start of a transaction:
   < Tx start >

   COMMIT log -- end of a transaction:
   < Tx commit >

   CHECKPOINT log -- lists the currently running transactions:
   < Tx1, Tx2... checkpoint >
*/

// Interface that all log structs share.
type Log interface {
	toString() string // Serializes the log to a string
}

// The type of edit action. Either insert or delete.
type action string

const (
	INSERT_ACTION action = "INSERT"
	DELETE_ACTION action = "DELETE"
)

// Log for making a change to an index entry within a transaction.
type editLog struct {
	id        uuid.UUID // The id of the transaction this edit was done in
	indexName string    // The name of the index where the edit took place
	action    action    // The type of edit action taken
	key       string    // The key of the entry that was edited
	value     string    // The value of the entry that was edited
}

func (el editLog) toString() string {
	return fmt.Sprintf("< %s, %s, %s, %s, %s >\n", el.id.String(), el.indexName, el.action, el.key, el.value)
}

// Log for starting a transaction.
type startLog struct {
	id uuid.UUID // The id of the transaction
}

func (sl startLog) toString() string {
	return fmt.Sprintf("< %s start >\n", sl.id.String())
}

// Log for committing a transaction.
type commitLog struct {
	id uuid.UUID // The id of the transaction
}

func (cl commitLog) toString() string {
	return fmt.Sprintf("< %s commit >\n", cl.id.String())
}

// Log for making a checkpoint.
type checkpointLog struct {
	ids []uuid.UUID // The currently running transactions.
}

func (cl checkpointLog) toString() string {
	idStrings := make([]string, 0)
	for _, id := range cl.ids {
		idStrings = append(idStrings, id.String())
	}
	if len(idStrings) == 0 {
		return "< checkpoint >\n"
	}
	return fmt.Sprintf("< %s checkpoint >\n", strings.Join(idStrings, ", "))
}

// Regex pattern for a uuid
const uuidPattern = "[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}"

var editExp = regexp.MustCompile(fmt.Sprintf("< (?P<uuid>%s), (?P<index>\\w+), (?P<action>INSERT|DELETE), (?P<key>[^,]+), (?P<value>[^>]+) >", uuidPattern))
var startExp = regexp.MustCompile(fmt.Sprintf("< (%s) start >", uuidPattern))
var commitExp = regexp.MustCompile(fmt.Sprintf("< (%s) commit >", uuidPattern))
var checkpointExp = regexp.MustCompile(fmt.Sprintf("< (%s,?\\s)*checkpoint >", uuidPattern))
var uuidExp = regexp.MustCompile(uuidPattern)

// LogFromString converts the textual representation of a log to its
// respective struct. Returns an error if the string could not be parsed.
func LogFromString(s string) (Log, error) {
	switch {
	case editExp.MatchString(s):
		matches := editExp.FindStringSubmatch(s)
		id, err := uuid.Parse(matches[editExp.SubexpIndex("uuid")])
		if err != nil {
			return nil, err
		}
		return editLog{
			id:        id,
			indexName: matches[editExp.SubexpIndex("index")],
			action:    action(matches[editExp.SubexpIndex("action")]),
			key:       strings.TrimSpace(matches[editExp.SubexpIndex("key")]),
			value:     strings.TrimSpace(matches[editExp.SubexpIndex("value")]),
		}, nil
	case startExp.MatchString(s):
		id, err := uuid.Parse(startExp.FindStringSubmatch(s)[1])
		if err != nil {
			return nil, err
		}
		return startLog{id: id}, nil
	case commitExp.MatchString(s):
		id, err := uuid.Parse(commitExp.FindStringSubmatch(s)[1])
		if err != nil {
			return nil, err
		}
		return commitLog{id: id}, nil
	case checkpointExp.MatchString(s):
		idStrings := uuidExp.FindAllString(s, -1)
		ids := make([]uuid.UUID, len(idStrings))
		for i, idString := range idStrings {
			id, err := uuid.Parse(idString)
			if err != nil {
				return nil, err
			}
			ids[i] = id
		}
		return checkpointLog{ids: ids}, nil
	default:
		return nil, errors.Errorf("could not parse log: %q", s)
	}
}
