package analysis

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/tphakala/fruitcount-go/internal/conf"
)

// ShowClasses loads the model and prints the configured classes with the
// label index each one resolved to.
func ShowClasses(settings *conf.Settings) error {
	if err := initializeDetector(settings, nil); err != nil {
		return err
	}
	defer releaseDetector()

	infos := det.ResolveClasses()
	if len(infos) == 0 {
		fmt.Println("No countable classes configured")
		return nil
	}

	fmt.Printf("Model %s provides %d labels, %d classes configured\n\n",
		settings.Detector.ModelName, len(det.Labels()), len(infos))

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Class\tLabel index\tStatus")
	for _, info := range infos {
		idx := strconv.Itoa(info.LabelIndex)
		status := "✅ matched"
		if !info.Matched {
			idx = "-"
			status = "❌ not in label table"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, idx, status)
	}
	return tw.Flush()
}
