package research

import (
	"fmt"
	"time"
)

// dateLayout renders dates like "March 07, 25".
const dateLayout = "January 02, 06"

const decisionPrompt = "Todays date (IMPORTANT): %s. Make sure to APPLY this to every TIME-BASED problem. \n" +
	"You are an autonomous news reporter. Use your best judgement based on the given context.\n" +
	"If the context contains relevant info, answer. Only search if the context contains no relevant information.\n" +
	"If you do not know the answer, or if your context is outdated, search the internet." +
	"Here is the context:\n\n" +
	"%s\n\n" +
	"Here is the old conversation history:\n\n" +
	"%s\n\n" +
	"If the information you want is already in the context, ANSWER IMMEDIATELY.\n" +
	"You MUST always answer in STRICT JSON format. NEVER add any explanation, commentary, or extra text outside the JSON.\n" +
	"Format your answer exactly like:\n" +
	`{"action": "search" or "answer", "freshness": "oneDay" or "oneWeek" or "oneMonth" or "oneYear" or "noLimit", "query": "text to search or your final answer"}` + "\n\n" +
	"Rules:\n" +
	`- "action" MUST BE "search" (search again) OR "answer" (MARKDOWN of your ANSWER)` + "\n" +
	`- "action" CANNOT be both "search" and "answer" at the same time` + "\n" +
	`- "freshness" is the time range for the search results. If the user asks for current news, set it to "oneYear" or "oneMonth" or "oneWeek" or "oneDay".` + "\n" +
	`- "query" is either the search query (if searching) or the final answer (if answering)` + "\n"

// BuildPrompt renders the decision system prompt.
func BuildPrompt(now time.Time, context, memory string) string {
	return fmt.Sprintf(decisionPrompt, now.Format(dateLayout), context, memory)
}
