package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

// NewArtifactCmd создаёт группу команд для управления артефактами.
func NewArtifactCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Manage artifacts",
	}

	cmd.AddCommand(
		newArtifactUploadCmd(clientFn, outputFn),
		newArtifactShowCmd(clientFn, outputFn),
		newArtifactProcessCmd(clientFn, outputFn),
		newArtifactStatusCmd(clientFn, outputFn),
		newArtifactWorkflowCmd(clientFn, outputFn),
	)

	return cmd
}

func newArtifactUploadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a book photo and schedule the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ct := contentType
			if ct == "" {
				ct = detectContentType(args[0], data)
			}

			artifact, err := client.UploadArtifact(data, ct)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Artifact uploaded: %s", artifact.ID))
			out.Print(
				[]string{"ID", "CONTENT_TYPE", "SIZE", "STATUS", "CREATED"},
				[][]string{{artifact.ID, artifact.ContentType, strconv.FormatInt(artifact.SizeBytes, 10), artifact.PipelineStatus, artifact.CreatedAt}},
				artifact,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "Override detected content type")

	return cmd
}

func newArtifactShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show artifact details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			artifact, err := client.GetArtifact(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "OBJECT_KEY", "CONTENT_TYPE", "SIZE", "STATUS", "CHECKSUM"},
				[][]string{{artifact.ID, artifact.ObjectKey, artifact.ContentType, strconv.FormatInt(artifact.SizeBytes, 10), artifact.PipelineStatus, artifact.Checksum}},
				artifact,
			)
			return nil
		},
	}
}

func newArtifactProcessCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "process ID",
		Short: "Schedule the full pipeline for an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.ProcessArtifact(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline scheduled, check status at %s", result.StatusURL))
			if out.jsonMode {
				out.JSON(result)
			}
			return nil
		},
	}
}

func newArtifactStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show the latest execution for an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetArtifactExecution(args[0])
			if err != nil {
				return err
			}

			out.Execution(exec)
			return nil
		},
	}
}

func newArtifactWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "workflow ID NAME",
		Short: "Run a workflow synchronously (detect, ocr, grade, crop, full)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.RunWorkflow(args[0], args[1])
			if err != nil {
				return err
			}

			if result.Accepted {
				out.Success(fmt.Sprintf("Pipeline scheduled, check status at %s", result.StatusURL))
				if out.jsonMode {
					out.JSON(result)
				}
				return nil
			}

			out.Success(fmt.Sprintf("Workflow %s completed", result.Workflow))
			out.JSON(result.Outputs)
			return nil
		},
	}
}

// detectContentType определяет MIME-тип по расширению, с fallback на
// сниффинг содержимого.
func detectContentType(path string, data []byte) string {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return http.DetectContentType(data)
	}
}
