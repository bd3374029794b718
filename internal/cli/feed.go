package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/signer"
	"github.com/ralt/qitoolchain/internal/utils"
)

func newSignFeedCmd(a *app) *cobra.Command {
	var keyPath, passphrase, publicKeyOut string

	cmd := &cobra.Command{
		Use:   "sign-feed <feed.xml>",
		Short: "Write a detached signature next to a feed",
		Long: `Sign a feed with a GPG private key. The armored signature is written
to <feed.xml>.asc, where toolchains configured with a keyring expect it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyPath == "" {
				return models.NewError(models.ErrInvalidConfig, "", "sign feed", fmt.Errorf("gpg-key is required"))
			}

			s, err := signer.NewGPGSigner(keyPath, passphrase)
			if err != nil {
				return models.NewError(models.ErrSignature, "", "sign feed", err)
			}

			feedPath := args[0]
			data, err := os.ReadFile(feedPath)
			if err != nil {
				return models.NewError(models.ErrFileOp, "", "sign feed", err)
			}

			sig, err := s.SignDetached(data)
			if err != nil {
				return models.NewError(models.ErrSignature, "", "sign feed", err)
			}
			sigPath := feedPath + signer.SignatureExt
			if err := utils.WriteFile(sigPath, sig, 0644); err != nil {
				return models.NewError(models.ErrFileOp, "", "sign feed", err)
			}
			logrus.Infof("Signature written to %s", sigPath)

			if publicKeyOut != "" {
				pub, err := s.GetPublicKey()
				if err != nil {
					return err
				}
				if err := utils.WriteFile(publicKeyOut, pub, 0644); err != nil {
					return models.NewError(models.ErrFileOp, "", "export public key", err)
				}
				logrus.Infof("Public key written to %s", publicKeyOut)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyPath, "gpg-key", "k", "", "Path to GPG private key")
	cmd.Flags().StringVarP(&passphrase, "gpg-passphrase", "p", "", "GPG key passphrase")
	cmd.Flags().StringVar(&publicKeyOut, "export-key", "", "Also write the armored public key to this file")
	return cmd
}
